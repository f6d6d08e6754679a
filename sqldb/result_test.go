package sqldb

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultText(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", (&Result{Columns: []string{"a"}}).Text())
		var r *Result
		assert.True(t, r.Empty())
	})

	t.Run("rows", func(t *testing.T) {
		r := &Result{
			Columns: []string{"company_name", "number_of_employee", "about"},
			Rows: [][]any{
				{"TechNova", int64(250), nil},
				{"BluePeak Analytics", int64(80), []byte("BI")},
			},
		}
		assert.Equal(t, "company_name | number_of_employee | about\nTechNova | 250 | NULL\nBluePeak Analytics | 80 | BI", r.Text())
	})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"x", "x"},
		{int64(6), "6"},
		{int32(7), "7"},
		{1800.5, "1800.5"},
		{float32(2.25), "2.25"},
		{true, "true"},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "2024-05-01"},
		{time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), "2024-05-01 10:30:00"},
		{[16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}, "12345678-9abc-def0-1234-56789abcdef0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestQueryExecutionError(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{errors.New(`no such column: "headcount"`), ReasonUnknownColumn},
		{errors.New(`ERROR: column "headcount" does not exist (SQLSTATE 42703)`), ReasonUnknownColumn},
		{errors.New("no such table: staff"), ReasonUnknownTable},
		{errors.New(`ERROR: relation "staff" does not exist`), ReasonUnknownTable},
		{errors.New(`near "SELEC": syntax error`), ReasonSyntax},
		{fmt.Errorf("%w: table users is not allow-listed", ErrTableNotAllowed), ReasonPermissionDenied},
		{ErrReadOnly, ReasonReadOnly},
		{errors.New("attempt to write a readonly database"), ReasonReadOnly},
		{errors.New("ERROR: cannot execute UPDATE in a read-only transaction (SQLSTATE 25006)"), ReasonReadOnly},
		{ErrPoolTimeout, ReasonTimeout},
		{errors.New("disk I/O error"), ReasonDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			qe := NewQueryExecutionError("SELECT 1", tt.err)
			assert.Equal(t, tt.reason, qe.Reason)
			assert.Equal(t, "query execution failed: "+tt.reason, qe.Error())
			assert.ErrorIs(t, qe, tt.err)
			assert.NotContains(t, qe.Error(), tt.err.Error())
		})
	}
}
