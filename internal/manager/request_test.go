package manager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/texture/internal/apperr"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest(KindAdd, []string{
		"--subject", "Calculus", " Physics ",
		"-n", "Calculus", "Precalculus Review", "Limits",
		"--note", "Chemistry",
		"-s", "Biology",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Calculus", "Physics", "Biology"}, req.Subjects)
	assert.Equal(t, []NoteGroup{
		{Subject: "Calculus", Titles: []string{"Precalculus Review", "Limits"}},
		{Subject: "Chemistry"},
	}, req.Notes)
	assert.False(t, req.Cache)
}

func TestParseRequest_CompileFlags(t *testing.T) {
	req, err := ParseRequest(KindCompile, []string{"--note", "Calculus", ":all:", "--cache", "--watch"})
	require.NoError(t, err)
	assert.True(t, req.Cache)
	assert.True(t, req.Watch)
	assert.Equal(t, []string{":all:"}, req.Notes[0].Titles)
}

func TestParseRequest_Errors(t *testing.T) {
	cases := []struct {
		kind Kind
		args []string
	}{
		{KindAdd, nil},
		{KindAdd, []string{"Calculus"}},
		{KindAdd, []string{"--subject"}},
		{KindAdd, []string{"--note"}},
		{KindAdd, []string{"--subject", "A", "--cache"}},
		{KindRemove, []string{"--subject", "A", "--force"}},
		{KindCompile, []string{"--cache"}},
	}
	for _, tc := range cases {
		_, err := ParseRequest(tc.kind, tc.args)
		assert.Error(t, err, "%v %v", tc.kind, tc.args)
	}
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want []error
	}{
		{
			name: "selectors accepted for remove",
			req:  Request{Kind: KindRemove, Subjects: []string{":all:"}, Notes: []NoteGroup{{Subject: "Calculus", Titles: []string{":ALL:"}}}},
		},
		{
			name: "selectors accepted for compile",
			req:  Request{Kind: KindCompile, Notes: []NoteGroup{{Subject: ":all:", Titles: []string{":all:"}}}},
		},
		{
			name: "selectors rejected for add",
			req:  Request{Kind: KindAdd, Subjects: []string{":All:"}},
			want: []error{apperr.ErrReservedName},
		},
		{
			name: "reserved titles",
			req:  Request{Kind: KindAdd, Notes: []NoteGroup{{Subject: "Calculus", Titles: []string{"Graphics", "graphics notes", "STYLESHEETS"}}}},
			want: []error{apperr.ErrReservedName},
		},
		{
			name: "every error collected",
			req: Request{
				Kind:     KindRemove,
				Subjects: []string{"Bad_Name"},
				Notes:    []NoteGroup{{Subject: "Calculus", Titles: []string{"", string(make([]rune, 300))}}},
			},
			want: []error{apperr.ErrInvalidCharacters, apperr.ErrTooLong},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if len(tc.want) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tc.want {
				assert.True(t, errors.Is(err, want), "expected %v in %v", want, err)
			}
		})
	}
}

func TestReport(t *testing.T) {
	r := &Report{Kind: KindAdd}
	r.add(Outcome{Op: OpAddSubject, Subject: "Calculus", Detail: "created"})
	r.fail(OpAddNote, "Calculus", "Limits", apperr.ErrDuplicateNote)

	assert.Equal(t, 1, r.Succeeded())
	require.Len(t, r.Failed(), 1)
	assert.ErrorIs(t, r.Err(), apperr.ErrDuplicateNote)
	assert.Contains(t, r.Err().Error(), `add note "Calculus"/"Limits"`)
	assert.Equal(t, `add subject "Calculus" (created)`, r.Outcomes[0].String())

	assert.NoError(t, (&Report{}).Err())
}
