package protocol

import (
	"reflect"
	"testing"
)

func TestTokenizeQuotesAndEscapes(t *testing.T) {
	got, err := Tokenize(`query name="John \"Doe\"" return email`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"query", `name=John "Doe"`, "return", "email"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestTokenizeUnclosedQuoteIsSyntaxError(t *testing.T) {
	if _, err := Tokenize(`query name="unclosed`); err != ErrSyntax {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestTokenizeEmptyIsSyntaxError(t *testing.T) {
	if _, err := Tokenize(`   `); err != ErrSyntax {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	tcs := [][]string{
		{"status"},
		{"query", `name=John "Doe"`, "return", "email"},
		{"add", "name=Alice", `note=has a\backslash`},
	}
	for _, tc := range tcs {
		joined := JoinTokens(tc)
		got, err := Tokenize(joined)
		if err != nil {
			t.Fatalf("round trip tokenize %q: %v", joined, err)
		}
		if !reflect.DeepEqual(got, tc) {
			t.Fatalf("round trip mismatch: joined=%q got=%#v want=%#v", joined, got, tc)
		}
	}
}

func TestParseStatusCaseFold(t *testing.T) {
	for _, s := range []string{"status", "STATUS", "StAtUs"} {
		cmd, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if cmd.Kind != Status {
			t.Fatalf("Parse(%q): got kind %v want Status", s, cmd.Kind)
		}
	}
}

func TestParseQueryWithReturn(t *testing.T) {
	cmd, err := Parse(`query name=john return email name`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Kind != Query {
		t.Fatalf("expected Query, got %v", cmd.Kind)
	}
	wantSel := []Selection{{Field: "name", Value: "john"}}
	if !reflect.DeepEqual(cmd.Selections, wantSel) {
		t.Fatalf("got selections %#v want %#v", cmd.Selections, wantSel)
	}
	wantRet := []string{"email", "name"}
	if !reflect.DeepEqual(cmd.Returns, wantRet) {
		t.Fatalf("got returns %#v want %#v", cmd.Returns, wantRet)
	}
}

func TestParseQueryBareWordIsEpsilonSelection(t *testing.T) {
	cmd, err := Parse(`query jdoe`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Selection{{Field: "", Value: "jdoe"}}
	if !reflect.DeepEqual(cmd.Selections, want) {
		t.Fatalf("got %#v want %#v", cmd.Selections, want)
	}
}

func TestParsePhAliasesQuery(t *testing.T) {
	cmd, err := Parse(`ph name=john`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Kind != Query {
		t.Fatalf("expected Query, got %v", cmd.Kind)
	}
}

func TestParseChangeCommand(t *testing.T) {
	cmd, err := Parse(`change alias=j-doe make fax="555-1212"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Kind != Change {
		t.Fatalf("expected Change, got %v", cmd.Kind)
	}
	if cmd.Force {
		t.Fatalf("expected force=false for 'make'")
	}
	wantSel := []Selection{{Field: "alias", Value: "j-doe"}}
	if !reflect.DeepEqual(cmd.Selections, wantSel) {
		t.Fatalf("got selections %#v want %#v", cmd.Selections, wantSel)
	}
	wantMods := []Pair{{Field: "fax", Value: "555-1212"}}
	if !reflect.DeepEqual(cmd.Modifications, wantMods) {
		t.Fatalf("got mods %#v want %#v", cmd.Modifications, wantMods)
	}
}

func TestParseChangeForce(t *testing.T) {
	cmd, err := Parse(`change alias=j-doe force fax=555`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cmd.Force {
		t.Fatalf("expected force=true")
	}
}

func TestParseChangeBadModificationIsSyntaxError(t *testing.T) {
	if _, err := Parse(`change alias=j-doe make badtoken`); err != ErrSyntax {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestParseAddRequiresPairs(t *testing.T) {
	if _, err := Parse(`add name=Alice bogus`); err != ErrSyntax {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	cmd, err := Parse(`add name=Alice email=alice@example.com`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Pair{{Field: "name", Value: "Alice"}, {Field: "email", Value: "alice@example.com"}}
	if !reflect.DeepEqual(cmd.Pairs, want) {
		t.Fatalf("got %#v want %#v", cmd.Pairs, want)
	}
}

func TestParseXLoginRequiresNumericOption(t *testing.T) {
	if _, err := Parse(`xlogin notanumber foo`); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	cmd, err := Parse(`xlogin 7 foo`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Option != 7 || cmd.Arg != "foo" {
		t.Fatalf("unexpected xlogin command: %+v", cmd)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	if _, err := Parse(`bogus command`); err != ErrUnknownCommand {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestParseQuitAliases(t *testing.T) {
	for _, s := range []string{"quit", "exit", "stop"} {
		cmd, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if cmd.Kind != Quit {
			t.Fatalf("Parse(%q): expected Quit, got %v", s, cmd.Kind)
		}
	}
}

func TestParseIDJoinsRemainingTokens(t *testing.T) {
	cmd, err := Parse(`id My Workstation`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Arg != "My Workstation" {
		t.Fatalf("got %q want %q", cmd.Arg, "My Workstation")
	}
}

func TestParseIDRequiresArgument(t *testing.T) {
	if _, err := Parse(`id`); err != ErrSyntax {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
}

func TestParseAuth(t *testing.T) {
	cmd, err := Parse(`auth ssh-ed25519AAAA sig==`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.PublicKey != "ssh-ed25519AAAA" || cmd.Signature != "sig==" {
		t.Fatalf("unexpected auth command: %+v", cmd)
	}
}

func TestParseHelpTarget(t *testing.T) {
	cmd, err := Parse(`help ph query`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.HelpTarget != "ph" || len(cmd.Args) != 1 || cmd.Args[0] != "query" {
		t.Fatalf("unexpected help command: %+v", cmd)
	}
}

func TestParseNeverPanics(t *testing.T) {
	lines := []string{
		``, `   `, `"`, `\`, `status extra args ignored`,
		`add`, `query`, `delete`, `change`, `help`, `fields a b c`,
		`set a b c`, `xlogin`, `auth onlyone`, `unknown thing here`,
	}
	for _, l := range lines {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Parse(%q) panicked: %v", l, r)
				}
			}()
			Parse(l)
		}()
	}
}
