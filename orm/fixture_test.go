package orm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CaliLuke/go-relmap/ast"
)

const fixtureRules = `
Person to Person as Partner
Person to Employer as EmployedBy
Job to Employer as Employs
Job to Person as EmployeeOf
Employer to Office as Owns
Person to Home as LivesIn
`

// fakeExecutor records queries and replays canned rows.
type fakeExecutor struct {
	rows    []map[string]any
	err     error
	queries []string
	args    [][]any
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) ([]map[string]any, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return f.rows, f.err
}

func (f *fakeExecutor) EscapeLiteral(v any, hint ast.LiteralType) (string, error) {
	return ast.FormatLiteral(v, hint)
}

func fixtureCatalog() *Catalog {
	c := NewCatalog()
	c.MustDeclare(TypeDescriptor{
		Name:       "Person",
		Properties: []string{"dna_seq", "surname", "given_name", "dob"},
		Keys:       []string{"dna_seq", "surname", "given_name"},
	})
	c.MustDeclare(TypeDescriptor{Name: "Employer", Properties: []string{"name"}, Keys: []string{"name"}})
	c.MustDeclare(TypeDescriptor{Name: "Recorded", Abstract: true, Properties: []string{"created", "altered"}})
	c.MustDeclare(TypeDescriptor{Name: "Building", Parent: "Recorded", Properties: []string{"address"}})
	c.MustDeclare(TypeDescriptor{Name: "Office", Parent: "Building"})
	c.MustDeclare(TypeDescriptor{Name: "Home", Parent: "Building"})
	c.MustDeclare(TypeDescriptor{Name: "LivesIn", Kind: KindRelationship, Properties: []string{"since"}})
	return c
}

func setupFixture(t *testing.T, opts ...SetupOption) (*Schema, *fakeExecutor) {
	t.Helper()
	Reset()
	t.Cleanup(Reset)

	exec := &fakeExecutor{}
	opts = append([]SetupOption{WithCatalog(fixtureCatalog())}, opts...)
	s, err := Setup(fixtureRules, exec, opts...)
	require.NoError(t, err)
	return s, exec
}

func mustSQL(t *testing.T, tmpl *Template) string {
	t.Helper()
	sql, err := tmpl.SQL()
	require.NoError(t, err)
	return sql
}
