// Copyright 2026 Province of British Columbia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clientstate reproduces the handful of key-value cookies the
// front end depends on: active tenant, language, basename, and the
// anonymous submitted-polls record.
package clientstate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Cookie names
const (
	CookieTenant         = "met_tenant"
	CookieLanguage       = "met_language"
	CookieBasename       = "met_basename"
	CookieSubmittedPolls = "met_submitted_polls"
)

// PollCookieMaxAge is one year: the duplicate-submission window for
// anonymous poll respondents.
const PollCookieMaxAge = 365 * 24 * time.Hour

// Keyring holds the derived cookie-signing key. Keys are derived from
// the configured gateway secret with HKDF so the raw secret never
// touches cookie material.
type Keyring struct {
	pollKey []byte
}

// NewKeyring derives signing keys from the master secret.
func NewKeyring(secret string) (*Keyring, error) {
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("met-gateway poll cookie v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive poll cookie key: %w", err)
	}
	return &Keyring{pollKey: key}, nil
}

// SignPolls encodes a submitted-poll id list into a signed cookie value.
func (k *Keyring) SignPolls(pollIDs []int) string {
	parts := make([]string, len(pollIDs))
	for i, id := range pollIDs {
		parts[i] = strconv.Itoa(id)
	}
	payload := strings.Join(parts, ".")
	return payload + "|" + k.sign(payload)
}

// VerifyPolls decodes a signed cookie value. A bad signature reads as
// empty rather than erroring: the worst case is re-allowing one poll
// submission.
func (k *Keyring) VerifyPolls(value string) []int {
	payload, sig, ok := strings.Cut(value, "|")
	if !ok || !hmac.Equal([]byte(sig), []byte(k.sign(payload))) {
		return nil
	}
	if payload == "" {
		return nil
	}
	var ids []int
	for _, part := range strings.Split(payload, ".") {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

// RecordPoll appends a poll id to the signed value if not already
// present.
func (k *Keyring) RecordPoll(value string, pollID int) string {
	ids := k.VerifyPolls(value)
	for _, id := range ids {
		if id == pollID {
			return k.SignPolls(ids)
		}
	}
	return k.SignPolls(append(ids, pollID))
}

func (k *Keyring) sign(payload string) string {
	mac := hmac.New(sha256.New, k.pollKey)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Writer sets client-state cookies with consistent attributes.
type Writer struct {
	Domain string
	Path   string
	Secure bool
}

// SetTenant persists the resolved tenant slug for subsequent API calls.
func (w Writer) SetTenant(rw http.ResponseWriter, slug string) {
	w.set(rw, CookieTenant, slug, 0)
}

// SetLanguage persists the selected language id.
func (w Writer) SetLanguage(rw http.ResponseWriter, lang string) {
	w.set(rw, CookieLanguage, lang, 0)
}

// SetBasename persists the router basename for the front end.
func (w Writer) SetBasename(rw http.ResponseWriter, basename string) {
	w.set(rw, CookieBasename, basename, 0)
}

// SetSubmittedPolls persists the signed poll record with the one-year
// expiry.
func (w Writer) SetSubmittedPolls(rw http.ResponseWriter, value string) {
	w.set(rw, CookieSubmittedPolls, value, PollCookieMaxAge)
}

func (w Writer) set(rw http.ResponseWriter, name, value string, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   w.Domain,
		Path:     w.Path,
		Secure:   w.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if w.Path == "" {
		c.Path = "/"
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
		c.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(rw, c)
}
