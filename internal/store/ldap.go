package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-ldap/ldap/v3"

	"github.com/iamrichardD/pharos/internal/log"
)

// attrMap translates canonical field names to directory-backend attribute
// names (§4.2).
var attrMap = map[string]string{
	"name":     "cn",
	"email":    "mail",
	"phone":    "telephoneNumber",
	"hostname": "cn",
	"ip":       "ipHostNumber",
}

// objectClassFor maps a default-type discriminator to the object-class
// constraint used to scope an LDAP search (§4.2).
func objectClassFor(t RecordType) string {
	switch t {
	case Person:
		return "inetOrgPerson"
	case Machine:
		return "ipHost"
	default:
		return ""
	}
}

// LDAPStore is the directory-backend adapter: it translates selections
// into a search filter against an external directory service and maps
// results back to Records. Writes are unsupported; Add logs and succeeds
// silently (§4.2).
type LDAPStore struct {
	url    string
	bindDN string
	bindPW string
	baseDN string
	lg     *log.Logger
}

// NewLDAPStore constructs a directory-backend adapter. No connection is
// made here: every Query and Count dials (and binds) afresh, using a
// bounded exponential backoff to tolerate a directory service that is
// still coming up.
func NewLDAPStore(url, bindDN, bindPW, baseDN string, lg *log.Logger) *LDAPStore {
	if lg == nil {
		lg = log.NewDiscardLogger()
	}
	return &LDAPStore{url: url, bindDN: bindDN, bindPW: bindPW, baseDN: baseDN, lg: lg}
}

// Count performs an unfiltered search scoped to the base DN and counts
// the results; a dial or search failure is logged and yields 0.
func (l *LDAPStore) Count() int {
	conn, err := l.dial()
	if err != nil {
		l.lg.Error("directory backend dial failed", log.KVErr(err))
		return 0
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(l.baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, "(objectClass=*)", []string{"dn"}, nil)
	res, err := conn.Search(req)
	if err != nil {
		l.lg.Error("directory backend count search failed", log.KVErr(err))
		return 0
	}
	return len(res.Entries)
}

// Add logs the attempted write and succeeds silently: the directory
// backend does not support writes (§4.2, §9 open question).
func (l *LDAPStore) Add(fields map[string]string) (Record, error) {
	l.lg.Error("directory backend does not support writes; ignoring add", log.KV("fields", fmt.Sprintf("%v", fields)))
	return Record{}, nil
}

func (l *LDAPStore) Query(selections []Selection, defaultType RecordType) ([]Record, error) {
	conn, err := l.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	filter := buildFilter(selections, defaultType)
	req := ldap.NewSearchRequest(l.baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, filter, nil, nil)
	res, err := conn.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(res.Entries))
	for i, e := range res.Entries {
		out = append(out, entryToRecord(i+1, e, defaultType))
	}
	return out, nil
}

func (l *LDAPStore) dial() (*ldap.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var conn *ldap.Conn
	op := func() error {
		c, err := ldap.DialURL(l.url)
		if err != nil {
			return err
		}
		if l.bindDN != "" {
			if err := c.Bind(l.bindDN, l.bindPW); err != nil {
				c.Close()
				return err
			}
		}
		conn = c
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return conn, nil
}

// buildFilter translates a selection clause into an LDAP filter. Multiple
// criteria combine with AND; an ε-field selector fans out as an OR across
// every mapped attribute (§4.2).
func buildFilter(selections []Selection, defaultType RecordType) string {
	var clauses []string
	if oc := objectClassFor(defaultType); oc != "" {
		clauses = append(clauses, fmt.Sprintf("(objectClass=%s)", oc))
	}
	for _, sel := range selections {
		clauses = append(clauses, selectionClause(sel))
	}
	switch len(clauses) {
	case 0:
		return "(objectClass=*)"
	case 1:
		return clauses[0]
	default:
		return "(&" + strings.Join(clauses, "") + ")"
	}
}

func selectionClause(sel Selection) string {
	val := ldap.EscapeFilter(sel.Value)
	if sel.Field != "" {
		attr, ok := attrMap[sel.Field]
		if !ok {
			attr = sel.Field
		}
		return fmt.Sprintf("(%s=*%s*)", attr, val)
	}
	var ors []string
	for _, attr := range attrMap {
		ors = append(ors, fmt.Sprintf("(%s=*%s*)", attr, val))
	}
	return "(|" + strings.Join(ors, "") + ")"
}

func entryToRecord(id int, e *ldap.Entry, defaultType RecordType) Record {
	fields := make(map[string]string, len(e.Attributes))
	for canonical, attr := range attrMap {
		if v := e.GetAttributeValue(attr); v != "" {
			fields[canonical] = v
		}
	}
	rec := Record{ID: id, Fields: fields, Type: defaultType}
	return rec
}
