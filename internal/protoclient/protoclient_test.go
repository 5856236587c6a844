package protoclient

import (
	"bufio"
	"strings"
	"testing"
)

func readerFor(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestReadResponseSimpleStatus(t *testing.T) {
	resp, err := ReadResponse(readerFor("100:Pharos server active\n200:Ok\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 200 || resp.Text != "Ok" {
		t.Fatalf("expected terminal 200:Ok, got %+v", resp)
	}
}

func TestReadResponseNoMatches(t *testing.T) {
	resp, err := ReadResponse(readerFor("501:No matches to query\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 501 {
		t.Fatalf("expected code 501, got %d", resp.Code)
	}
}

func TestReadResponseMatchCountAndRows(t *testing.T) {
	wire := "102:There were 1 matches to your request.\n" +
		"-200:1:email: john@example.com\n" +
		"-200:1:name: John Doe\n" +
		"-200:1:type: person\n" +
		"200:Ok\n"
	resp, err := ReadResponse(readerFor(wire))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.SawMatchCount || resp.MatchCount != 1 {
		t.Fatalf("expected match count 1, got %+v", resp)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d", len(resp.Rows))
	}
	want := []Row{
		{Index: 1, Field: "email", Value: "john@example.com"},
		{Index: 1, Field: "name", Value: "John Doe"},
		{Index: 1, Field: "type", Value: "person"},
	}
	for i, w := range want {
		if resp.Rows[i] != w {
			t.Fatalf("row %d = %+v, want %+v", i, resp.Rows[i], w)
		}
	}
	if resp.Code != 200 {
		t.Fatalf("expected terminal code 200, got %d", resp.Code)
	}
}

func TestReadResponseExtractsChallenge(t *testing.T) {
	resp, err := ReadResponse(readerFor("401:Authentication required. Challenge: deadbeefdeadbeefdeadbeefdeadbeef\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Challenge != "deadbeefdeadbeefdeadbeefdeadbeef" {
		t.Fatalf("expected extracted challenge, got %q", resp.Challenge)
	}
	if resp.Code != 401 {
		t.Fatalf("expected code 401, got %d", resp.Code)
	}
}

func TestReadResponseMalformedLine(t *testing.T) {
	_, err := ReadResponse(readerFor("not a valid line\n"))
	if err == nil {
		t.Fatal("expected an error for a malformed response line")
	}
}
