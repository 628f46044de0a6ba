package ast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLiteral(t *testing.T) {
	name := "Joe"
	var nilPtr *string
	tests := []struct {
		name string
		val  any
		hint LiteralType
		want string
	}{
		{name: "nil", val: nil, want: "NULL"},
		{name: "nil pointer", val: nilPtr, want: "NULL"},
		{name: "null hint", val: "x", hint: LiteralNull, want: "NULL"},
		{name: "string", val: "Bloggs", want: "'Bloggs'"},
		{name: "quoted string", val: "O'Neil", want: "'O''Neil'"},
		{name: "pointer", val: &name, want: "'Joe'"},
		{name: "bytes", val: []byte("abc"), want: "'abc'"},
		{name: "int", val: 42, want: "42"},
		{name: "uint8", val: uint8(7), want: "7"},
		{name: "float", val: 1.5, want: "1.5"},
		{name: "int as string", val: 42, hint: LiteralString, want: "'42'"},
		{name: "string as int", val: " 17 ", hint: LiteralInt, want: "17"},
		{name: "float as int", val: 3.9, hint: LiteralInt, want: "3"},
		{name: "int as float", val: 2, hint: LiteralFloat, want: "2"},
		{name: "time", val: time.Date(2009, 1, 2, 3, 4, 5, 0, time.UTC), want: "'2009-01-02T03:04:05Z'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatLiteral(tt.val, tt.hint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatLiteral_Errors(t *testing.T) {
	_, err := FormatLiteral(true, LiteralAuto)
	require.Error(t, err)

	_, err = FormatLiteral("abc", LiteralInt)
	require.Error(t, err)

	_, err = FormatLiteral(struct{}{}, LiteralString)
	require.Error(t, err)
}

func TestParseLiteralType(t *testing.T) {
	for in, want := range map[string]LiteralType{
		"":       LiteralAuto,
		"NULL":   LiteralNull,
		"string": LiteralString,
		"int":    LiteralInt,
		"Float":  LiteralFloat,
	} {
		got, err := ParseLiteralType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLiteralType("decimal")
	require.Error(t, err)
}
