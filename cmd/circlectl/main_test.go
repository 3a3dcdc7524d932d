package main

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
)

func TestCommandArgsRejectedBeforeConnecting(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"admin create needs email and password", []string{"admin", "create"}, `required flag(s) "email", "password" not set`},
		{"approve needs an email", []string{"users", "approve"}, "accepts 1 arg(s), received 0"},
		{"migrate takes no args", []string{"migrate", "extra"}, `unknown command "extra"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rootCmd.SetArgs(tc.args)
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})
			err := rootCmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPrintUsers(t *testing.T) {
	code := "LW-ABC234"
	resp := &dto.ListUsersResponse{
		Total: 3,
		Users: []dto.AdminUserResponse{
			{
				UserResponse: dto.UserResponse{ID: uuid.New(), Email: "ada@example.com", Tier: "AMBASSADOR", RefCode: &code, IsApproved: true},
				Clicks:       12,
				Orders:       2,
				TotalSales:   "1500.00",
				Earnings:     "150.00",
			},
			{
				UserResponse: dto.UserResponse{ID: uuid.New(), Email: "new@example.com", Tier: "ADVOCATE"},
				TotalSales:   "0.00",
				Earnings:     "0.00",
			},
		},
	}

	var out bytes.Buffer
	require.NoError(t, printUsers(&out, resp))

	text := out.String()
	assert.Contains(t, text, "EMAIL")
	assert.Regexp(t, `ada@example.com\s+AMBASSADOR\s+approved\s+LW-ABC234\s+12\s+2\s+1500.00\s+150.00`, text)
	assert.Regexp(t, `new@example.com\s+ADVOCATE\s+pending\s+-\s+0\s+0`, text)
	assert.Contains(t, text, "2 of 3 shown")
}
