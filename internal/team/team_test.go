package team

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		team    string
		wantErr bool
	}{
		{name: "simple", team: "blue", wantErr: false},
		{name: "with hyphen", team: "red-team", wantErr: false},
		{name: "digits", team: "t3am42", wantErr: false},
		{name: "minimum length", team: "abc", wantErr: false},
		{name: "maximum length", team: strings.Repeat("a", 16), wantErr: false},
		{name: "too short", team: "ab", wantErr: true},
		{name: "too long", team: strings.Repeat("a", 17), wantErr: true},
		{name: "uppercase", team: "Blue", wantErr: true},
		{name: "leading hyphen", team: "-blue", wantErr: true},
		{name: "trailing hyphen", team: "blue-", wantErr: true},
		{name: "underscore", team: "blue_team", wantErr: true},
		{name: "dot", team: "blue.team", wantErr: true},
		{name: "empty", team: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.team)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "t-blue", Namespace("blue"))
	assert.Equal(t, "t-blue-wrongsecrets", WorkloadName("blue"))
	assert.Equal(t, "t-blue-virtualdesktop", DesktopName("blue"))
}

func TestFromNamespace(t *testing.T) {
	team, ok := FromNamespace("t-blue")
	require.True(t, ok)
	assert.Equal(t, "blue", team)

	_, ok = FromNamespace("kube-system")
	assert.False(t, ok)

	_, ok = FromNamespace("t-")
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, map[string]string{
		"app":                "wrongsecrets",
		"team":               "blue",
		"deployment-context": "ctf",
	}, Labels("wrongsecrets", "blue", "ctf"))
}
