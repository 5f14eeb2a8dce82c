package envelope

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophkerb/internal/cryptox"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
	"github.com/dmitrijs2005/gophkerb/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randKey(t *testing.T) []byte {
	t.Helper()
	k, err := cryptox.RandomBytes(KeySize)
	require.NoError(t, err)
	return k
}

func randIV(t *testing.T) IV {
	t.Helper()
	iv, err := NewIV()
	require.NoError(t, err)
	return iv
}

func randID(t *testing.T) identity.ID {
	t.Helper()
	id, err := identity.New()
	require.NoError(t, err)
	return id
}

func TestSessionKey_RoundTrip(t *testing.T) {
	hash := cryptox.HashPassword([]byte("hunter2"))
	key := randKey(t)
	nonce := Nonce{1, 2, 3, 4, 5, 6, 7, 8}
	iv := randIV(t)

	sk := &SessionKey{IV: iv, Nonce: nonce, Key: secret.From(key)}
	assert.False(t, sk.IsEncrypted())
	require.NoError(t, sk.Encrypt(hash[:]))
	assert.True(t, sk.IsEncrypted())
	assert.Nil(t, sk.Key, "plaintext key must be dropped after encryption")

	raw, err := sk.Marshal()
	require.NoError(t, err)
	require.Len(t, raw, SessionKeySize)

	parsed, err := ParseSessionKey(raw)
	require.NoError(t, err)
	require.True(t, parsed.IsEncrypted())
	require.NoError(t, parsed.Decrypt(hash[:]))

	assert.False(t, parsed.IsEncrypted())
	assert.Equal(t, nonce, parsed.Nonce)
	assert.Equal(t, key, parsed.Key.Bytes())
	assert.Equal(t, iv, parsed.IV)
}

func TestSessionKey_EncryptRejectsMissingFields(t *testing.T) {
	hash := cryptox.HashPassword([]byte("pw"))

	tests := []struct {
		name string
		sk   SessionKey
		want error
	}{
		{name: "zero iv", sk: SessionKey{Nonce: Nonce{1}, Key: secret.From(randKey(t))}, want: ErrMissingField},
		{name: "zero nonce", sk: SessionKey{IV: randIV(t), Key: secret.From(randKey(t))}, want: ErrMissingField},
		{name: "zero key", sk: SessionKey{IV: randIV(t), Nonce: Nonce{1}, Key: secret.New(KeySize)}, want: ErrMissingField},
		{name: "short key", sk: SessionKey{IV: randIV(t), Nonce: Nonce{1}, Key: secret.From([]byte("short"))}, want: ErrInvalidKey},
		{name: "no key", sk: SessionKey{IV: randIV(t), Nonce: Nonce{1}}, want: ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sk.Encrypt(hash[:])
			require.ErrorIs(t, err, tt.want)
			assert.False(t, tt.sk.IsEncrypted())
		})
	}
}

func TestSessionKey_DecryptWithWrongPassword(t *testing.T) {
	right := cryptox.HashPassword([]byte("right"))
	wrong := cryptox.HashPassword([]byte("wrong"))

	sk := &SessionKey{IV: randIV(t), Nonce: Nonce{9}, Key: secret.From(randKey(t))}
	require.NoError(t, sk.Encrypt(right[:]))

	err := sk.Decrypt(wrong[:])
	require.ErrorIs(t, err, ErrDecrypt)
	assert.True(t, sk.IsEncrypted(), "failed decryption keeps the ciphertext")

	require.NoError(t, sk.Decrypt(right[:]))
}

func TestSessionKey_DecryptRequiresEncryptedState(t *testing.T) {
	sk := &SessionKey{IV: randIV(t), Nonce: Nonce{1}, Key: secret.From(randKey(t))}
	require.ErrorIs(t, sk.Decrypt(randKey(t)), ErrNotEncrypted)

	_, err := sk.Marshal()
	require.ErrorIs(t, err, ErrNotEncrypted)
}

func newTicket(t *testing.T, created time.Time) (*Ticket, []byte) {
	t.Helper()
	key := randKey(t)
	return &Ticket{
		Version:   24,
		ClientID:  randID(t),
		ServerID:  randID(t),
		CreatedAt: created,
		IV:        randIV(t),
		Key:       secret.From(key),
		ExpiresAt: created.Add(TicketLifetime),
	}, key
}

func TestTicket_RoundTrip(t *testing.T) {
	serverKey := randKey(t)
	created := time.UnixMilli(1_700_000_000_123)

	tk, sessionKey := newTicket(t, created)
	client, server, iv := tk.ClientID, tk.ServerID, tk.IV
	require.NoError(t, tk.Encrypt(serverKey))

	raw, err := tk.Marshal()
	require.NoError(t, err)
	require.Len(t, raw, TicketSize)
	assert.Equal(t, byte(24), raw[0])

	parsed, err := ParseTicket(raw)
	require.NoError(t, err)
	assert.Equal(t, client, parsed.ClientID)
	assert.Equal(t, server, parsed.ServerID)
	assert.Equal(t, created.UnixMilli(), parsed.CreatedAt.UnixMilli())
	assert.Equal(t, iv, parsed.IV)

	require.NoError(t, parsed.Decrypt(serverKey))
	assert.Equal(t, sessionKey, parsed.Key.Bytes())
	assert.Equal(t, created.Add(TicketLifetime).UnixMilli(), parsed.ExpiresAt.UnixMilli())
}

func TestTicket_Expired(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	tk := &Ticket{ExpiresAt: now}

	assert.True(t, tk.Expired(now), "expiry equal to now is expired")
	assert.True(t, tk.Expired(now.Add(time.Millisecond)))
	assert.False(t, tk.Expired(now.Add(-time.Millisecond)))
}

func TestTicket_MissingFields(t *testing.T) {
	serverKey := randKey(t)

	mutate := map[string]func(*Ticket){
		"version":  func(tk *Ticket) { tk.Version = 0 },
		"client":   func(tk *Ticket) { tk.ClientID = identity.ID{} },
		"server":   func(tk *Ticket) { tk.ServerID = identity.ID{} },
		"created":  func(tk *Ticket) { tk.CreatedAt = time.UnixMilli(0) },
		"iv":       func(tk *Ticket) { tk.IV = IV{} },
		"expiry":   func(tk *Ticket) { tk.ExpiresAt = time.UnixMilli(0) },
		"zero key": func(tk *Ticket) { tk.Key = secret.New(KeySize) },
	}

	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			tk, _ := newTicket(t, time.Now())
			fn(tk)
			require.ErrorIs(t, tk.Encrypt(serverKey), ErrMissingField)
		})
	}
}

func TestTicket_DecryptRejectsZeroedHeaderOnWire(t *testing.T) {
	serverKey := randKey(t)
	tk, _ := newTicket(t, time.Now())
	require.NoError(t, tk.Encrypt(serverKey))
	raw, err := tk.Marshal()
	require.NoError(t, err)

	// wipe the client id in transit
	copy(raw[1:17], make([]byte, 16))
	parsed, err := ParseTicket(raw)
	require.NoError(t, err)
	require.ErrorIs(t, parsed.Decrypt(serverKey), ErrMissingField)
}

func TestTicket_WrongServerKey(t *testing.T) {
	tk, _ := newTicket(t, time.Now())
	require.NoError(t, tk.Encrypt(randKey(t)))
	err := tk.Decrypt(randKey(t))
	require.True(t, errors.Is(err, ErrDecrypt), "got %v", err)
}

func TestParse_RejectsWrongSizes(t *testing.T) {
	_, err := ParseTicket(make([]byte, TicketSize-1))
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParseSessionKey(make([]byte, SessionKeySize+1))
	require.ErrorIs(t, err, ErrMalformed)
	_, err = ParseAuthenticator(nil)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	sessionKey := randKey(t)
	created := time.UnixMilli(1_700_000_111_222)
	a := &Authenticator{
		IV:        randIV(t),
		Version:   24,
		ClientID:  randID(t),
		ServerID:  randID(t),
		CreatedAt: created,
	}
	want := *a

	require.NoError(t, a.Encrypt(sessionKey))
	assert.True(t, a.ClientID.IsZero(), "plaintext fields are cleared after encryption")

	raw, err := a.Marshal()
	require.NoError(t, err)
	require.Len(t, raw, AuthenticatorSize)

	parsed, err := ParseAuthenticator(raw)
	require.NoError(t, err)
	require.NoError(t, parsed.Decrypt(sessionKey))

	assert.Equal(t, want.Version, parsed.Version)
	assert.Equal(t, want.ClientID, parsed.ClientID)
	assert.Equal(t, want.ServerID, parsed.ServerID)
	assert.Equal(t, created.UnixMilli(), parsed.CreatedAt.UnixMilli())
	assert.False(t, parsed.IsEncrypted())
}

func TestAuthenticator_EncryptRejectsZeroIV(t *testing.T) {
	a := &Authenticator{Version: 24, ClientID: randID(t), ServerID: randID(t), CreatedAt: time.Now()}
	require.ErrorIs(t, a.Encrypt(randKey(t)), ErrMissingField)
}

func TestAuthenticator_ZeroKeyIsMissing(t *testing.T) {
	a := &Authenticator{IV: randIV(t), Version: 24, ClientID: randID(t), ServerID: randID(t), CreatedAt: time.Now()}
	require.ErrorIs(t, a.Encrypt(make([]byte, KeySize)), ErrMissingField)
}
