package moodle

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launchCallback(serverURL, passport, token string) string {
	sig := md5.Sum([]byte(serverURL + passport))
	payload := hex.EncodeToString(sig[:]) + ":::" + token + ":::private"
	return "webeep://token=" + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestBuildLaunchURL(t *testing.T) {
	u := BuildLaunchURL("https://webeep.polimi.it/", "abc123")
	assert.Contains(t, u, "https://webeep.polimi.it/admin/tool/mobile/launch.php?")
	assert.Contains(t, u, "passport=abc123")
	assert.Contains(t, u, "service=local_mobile")
	assert.Contains(t, u, "urlscheme=webeep")
}

func TestParseLaunchToken(t *testing.T) {
	const server = "https://webeep.polimi.it"
	const passport = "deadbeef"

	tok, err := ParseLaunchToken(launchCallback(server, passport, "tok-123"), server, passport)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)

	// trailing slash on the configured URL is tolerated
	tok, err = ParseLaunchToken(launchCallback(server, passport, "tok-123"), server+"/", passport)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestParseLaunchTokenErrors(t *testing.T) {
	const server = "https://webeep.polimi.it"

	tests := []struct {
		name     string
		callback string
	}{
		{name: "no token param", callback: "webeep://nope"},
		{name: "bad base64", callback: "webeep://token=%%%"},
		{name: "too few parts", callback: "webeep://token=" + base64.StdEncoding.EncodeToString([]byte("justone"))},
		{name: "wrong passport", callback: launchCallback(server, "other", "tok")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLaunchToken(tt.callback, server, "deadbeef")
			assert.Error(t, err)
		})
	}
}

func TestMemoryTokenStore(t *testing.T) {
	store := &MemoryTokenStore{}

	tok, err := store.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, store.SetToken("abc"))
	tok, _ = store.Token()
	assert.Equal(t, "abc", tok)

	require.NoError(t, store.Clear())
	tok, _ = store.Token()
	assert.Empty(t, tok)
}
