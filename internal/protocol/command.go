package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned when the first token does not name a
// recognized command.
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidArgument is returned when a recognized command's arguments
// fail a type check (e.g. xlogin's numeric option).
var ErrInvalidArgument = errors.New("invalid argument")

// Kind identifies which Ph command a parsed line represents.
type Kind int

const (
	Status Kind = iota
	SiteInfo
	Fields
	ID
	Auth
	Set
	Login
	Logout
	Answer
	Clear
	Email
	XLogin
	Add
	Query
	Delete
	Change
	Help
	Quit
)

var kindNames = map[Kind]string{
	Status:   "status",
	SiteInfo: "siteinfo",
	Fields:   "fields",
	ID:       "id",
	Auth:     "auth",
	Set:      "set",
	Login:    "login",
	Logout:   "logout",
	Answer:   "answer",
	Clear:    "clear",
	Email:    "email",
	XLogin:   "xlogin",
	Add:      "add",
	Query:    "query",
	Delete:   "delete",
	Change:   "change",
	Help:     "help",
	Quit:     "quit",
}

// String returns the canonical lowercase keyword for k, used in log
// output.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Pair is a single field=value token, as produced by the "add" and
// "change" grammars.
type Pair struct {
	Field string
	Value string
}

// Selection is one entry of a selection clause (§3): an optional field
// name paired with a value. An empty Field means "any field" (ε-field).
type Selection struct {
	Field string // "" means ε (any field)
	Value string
}

// Command is the parsed representation of one Ph request line. Only the
// fields relevant to Kind are populated.
type Command struct {
	Kind Kind

	// Fields, Help topics, Set args
	Args []string

	// ID, Login, Answer, Clear, Email
	Arg string

	// Auth
	PublicKey string
	Signature string

	// XLogin
	Option uint64

	// Add
	Pairs []Pair

	// Query/Delete/Change selection clause
	Selections []Selection

	// Query return clause
	Returns []string

	// Change
	Modifications []Pair
	Force         bool

	// Help
	HelpTarget string
}

// Parse tokenizes line and matches it against the Ph grammar (§4.1),
// returning a typed Command or one of ErrUnknownCommand, ErrSyntax,
// ErrInvalidArgument.
func Parse(line string) (Command, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return Command{}, err
	}

	keyword := strings.ToLower(tokens[0])
	rest := tokens[1:]

	switch keyword {
	case "status":
		return Command{Kind: Status}, nil
	case "siteinfo":
		return Command{Kind: SiteInfo}, nil
	case "fields":
		return Command{Kind: Fields, Args: rest}, nil
	case "id":
		if len(rest) < 1 {
			return Command{}, ErrSyntax
		}
		return Command{Kind: ID, Arg: strings.Join(rest, " ")}, nil
	case "auth":
		if len(rest) != 2 {
			return Command{}, ErrSyntax
		}
		return Command{Kind: Auth, PublicKey: rest[0], Signature: rest[1]}, nil
	case "set":
		return Command{Kind: Set, Args: rest}, nil
	case "login":
		if len(rest) < 1 {
			return Command{}, ErrSyntax
		}
		return Command{Kind: Login, Arg: rest[0]}, nil
	case "logout":
		return Command{Kind: Logout}, nil
	case "answer":
		if len(rest) < 1 {
			return Command{}, ErrSyntax
		}
		return Command{Kind: Answer, Arg: rest[0]}, nil
	case "clear":
		if len(rest) < 1 {
			return Command{}, ErrSyntax
		}
		return Command{Kind: Clear, Arg: rest[0]}, nil
	case "email":
		if len(rest) < 1 {
			return Command{}, ErrSyntax
		}
		return Command{Kind: Email, Arg: rest[0]}, nil
	case "xlogin":
		if len(rest) < 2 {
			return Command{}, ErrSyntax
		}
		opt, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return Command{}, ErrInvalidArgument
		}
		return Command{Kind: XLogin, Option: opt, Arg: rest[1]}, nil
	case "add":
		pairs := make([]Pair, 0, len(rest))
		for _, tok := range rest {
			k, v, ok := splitPair(tok)
			if !ok {
				return Command{}, ErrSyntax
			}
			pairs = append(pairs, Pair{Field: k, Value: v})
		}
		return Command{Kind: Add, Pairs: pairs}, nil
	case "query", "ph":
		sels, returns := parseSelectionsAndReturns(rest)
		return Command{Kind: Query, Selections: sels, Returns: returns}, nil
	case "delete":
		sels, _ := parseSelectionsAndReturns(rest)
		return Command{Kind: Delete, Selections: sels}, nil
	case "change":
		sels, mods, force, err := parseChange(rest)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: Change, Selections: sels, Modifications: mods, Force: force}, nil
	case "help":
		target, topics := parseHelp(rest)
		return Command{Kind: Help, HelpTarget: target, Args: topics}, nil
	case "quit", "exit", "stop":
		return Command{Kind: Quit}, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}

// splitPair splits a token at its first '=' into (field, value). The
// value may be empty; a token with no '=' is not a pair.
func splitPair(tok string) (field, value string, ok bool) {
	i := strings.IndexByte(tok, '=')
	if i < 0 {
		return "", "", false
	}
	return tok[:i], tok[i+1:], true
}

func parseSelectionsAndReturns(tokens []string) (sels []Selection, returns []string) {
	inReturns := false
	for _, tok := range tokens {
		if !inReturns && strings.EqualFold(tok, "return") {
			inReturns = true
			continue
		}
		if inReturns {
			returns = append(returns, tok)
			continue
		}
		if k, v, ok := splitPair(tok); ok {
			sels = append(sels, Selection{Field: k, Value: v})
		} else {
			sels = append(sels, Selection{Field: "", Value: tok})
		}
	}
	return
}

func parseChange(tokens []string) (sels []Selection, mods []Pair, force bool, err error) {
	inMods := false
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if !inMods && (lower == "make" || lower == "force") {
			force = lower == "force"
			inMods = true
			continue
		}
		if !inMods {
			if k, v, ok := splitPair(tok); ok {
				sels = append(sels, Selection{Field: k, Value: v})
			} else {
				sels = append(sels, Selection{Field: "", Value: tok})
			}
			continue
		}
		k, v, ok := splitPair(tok)
		if !ok {
			return nil, nil, false, ErrSyntax
		}
		mods = append(mods, Pair{Field: k, Value: v})
	}
	return
}

func parseHelp(tokens []string) (target string, topics []string) {
	if len(tokens) == 0 {
		return "", nil
	}
	first := strings.ToLower(tokens[0])
	if first == "native" || first == "ph" {
		return first, tokens[1:]
	}
	return "", tokens
}
