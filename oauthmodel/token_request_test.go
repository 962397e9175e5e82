package oauthmodel_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-flume-client/oauth2"
	"github.com/jrsteele09/go-flume-client/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestTokenRequest_Validate(t *testing.T) {
	t.Run("password grant", func(t *testing.T) {
		require.NoError(t, oauthmodel.NewPasswordRequest("id", "secret", "u", "p").Validate())
	})

	t.Run("password grant without password", func(t *testing.T) {
		err := oauthmodel.NewPasswordRequest("id", "secret", "u", "").Validate()
		require.ErrorIs(t, err, oauthmodel.ErrMissingUserCredentials)
	})

	t.Run("refresh grant", func(t *testing.T) {
		require.NoError(t, oauthmodel.NewRefreshRequest("id", "secret", "rt").Validate())
	})

	t.Run("refresh grant without token", func(t *testing.T) {
		err := oauthmodel.NewRefreshRequest("id", "secret", " ").Validate()
		require.ErrorIs(t, err, oauthmodel.ErrMissingRefreshToken)
	})

	t.Run("missing client secret", func(t *testing.T) {
		err := oauthmodel.NewRefreshRequest("id", "", "rt").Validate()
		require.ErrorIs(t, err, oauthmodel.ErrMissingClientCredentials)
	})

	t.Run("client credentials not supported", func(t *testing.T) {
		err := oauthmodel.TokenRequest{GrantType: oauth2.GrantType("client_credentials"), ClientID: "id", ClientSecret: "s"}.Validate()
		require.ErrorIs(t, err, oauthmodel.ErrUnsupportedGrantType)
	})
}

func TestTokenRequest_RefreshOmitsUserFields(t *testing.T) {
	body, err := json.Marshal(oauthmodel.NewRefreshRequest("id", "secret", "rt"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	require.Equal(t, "refresh_token", fields["grant_type"])
	require.NotContains(t, fields, "username")
	require.NotContains(t, fields, "password")
}
