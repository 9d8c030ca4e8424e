package clientstate

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_SignAndVerify(t *testing.T) {
	k, err := NewKeyring("gateway-secret")
	require.NoError(t, err)

	value := k.SignPolls([]int{3, 17, 42})
	assert.Equal(t, []int{3, 17, 42}, k.VerifyPolls(value))

	assert.Nil(t, k.VerifyPolls(""), "empty cookie reads as no submissions")
	assert.Nil(t, k.VerifyPolls("3.17|bogus"), "bad signature reads as no submissions")

	// Tampering with the payload invalidates the signature.
	tampered := strings.Replace(value, "3.17", "3.18", 1)
	assert.Nil(t, k.VerifyPolls(tampered))

	// A value signed under a different secret does not verify.
	other, err := NewKeyring("other-secret")
	require.NoError(t, err)
	assert.Nil(t, other.VerifyPolls(value))
}

func TestKeyring_RecordPoll(t *testing.T) {
	k, err := NewKeyring("gateway-secret")
	require.NoError(t, err)

	value := k.RecordPoll("", 5)
	assert.Equal(t, []int{5}, k.VerifyPolls(value))

	value = k.RecordPoll(value, 9)
	assert.Equal(t, []int{5, 9}, k.VerifyPolls(value))

	// Recording a duplicate is a no-op.
	value = k.RecordPoll(value, 5)
	assert.Equal(t, []int{5, 9}, k.VerifyPolls(value))
}

func TestWriter(t *testing.T) {
	w := Writer{Domain: "gov.bc.ca", Secure: true}

	rec := httptest.NewRecorder()
	w.SetTenant(rec, "gdx")
	w.SetLanguage(rec, "fr")
	w.SetSubmittedPolls(rec, "payload|sig")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 3)

	byName := map[string]int{}
	for i, c := range cookies {
		byName[c.Name] = i
		assert.Equal(t, "gov.bc.ca", c.Domain)
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.Secure)
	}

	assert.Equal(t, "gdx", cookies[byName[CookieTenant]].Value)
	assert.Equal(t, "fr", cookies[byName[CookieLanguage]].Value)

	polls := cookies[byName[CookieSubmittedPolls]]
	assert.Equal(t, int(PollCookieMaxAge.Seconds()), polls.MaxAge, "poll record lives for one year")
}
