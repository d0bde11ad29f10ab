package error

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *DBError
		want string
	}{
		{
			name: "message only",
			err:  New(ErrCategoryUser, CodeQuerySyntax, "bad query"),
			want: "[QUERY_SYNTAX] bad query",
		},
		{
			name: "detail and operation",
			err: New(ErrCategoryData, CodeRelationCorrupt, "truncated file").
				WithDetail("want %d bytes", 16).
				WithOperation("Load", "Relation"),
			want: "[RELATION_CORRUPT] truncated file: want 16 bytes (operation: Load, component: Relation)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	require.Nil(t, Wrap(nil, CodeRelationIO, "Load", "Relation"))

	wrapped := Wrap(io.ErrUnexpectedEOF, CodeRelationIO, "Load", "Relation")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrCategorySystem, wrapped.Category)
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	assert.Contains(t, wrapped.Error(), "caused by: unexpected EOF")

	inner := New(ErrCategoryUser, CodeQuerySyntax, "bad")
	again := Wrap(fmt.Errorf("ctx: %w", inner), CodeRelationIO, "Execute", "Database")
	assert.Same(t, inner, again)
	assert.Equal(t, "Execute", inner.Operation)
}

func TestHasCode(t *testing.T) {
	base := New(ErrCategoryUser, CodeCrossProduct, "no connecting predicate")
	outer := Wrap(base, CodeRelationIO, "Join", "Planner")

	assert.True(t, HasCode(outer, CodeCrossProduct))
	assert.True(t, HasCode(fmt.Errorf("query 3: %w", base), CodeCrossProduct))
	assert.False(t, HasCode(base, CodeQuerySyntax))
	assert.False(t, HasCode(errors.New("plain"), CodeQuerySyntax))
	assert.False(t, HasCode(nil, CodeQuerySyntax))
}

func TestInvariant(t *testing.T) {
	err := Invariant(CodeColumnNotRequired, "Scan", "Resolve", "column %d.%d never required", 1, 2)
	assert.Equal(t, ErrCategoryInvariant, err.Category)
	assert.Equal(t, "[COLUMN_NOT_REQUIRED] column 1.2 never required (operation: Resolve, component: Scan)", err.Error())
	assert.Contains(t, err.FormatStack(), "Stack trace:")
	assert.Equal(t, "invariant", err.Category.String())
}
