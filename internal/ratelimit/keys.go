package ratelimit

import (
  "crypto/rand"
  "encoding/hex"
  "time"

  "golang.org/x/crypto/blake2b"

  "github.com/slotter-org/tutor-backend/internal/requestdata"
)

// KeyDeriver turns callers into counter keys without keeping raw client addresses.
type KeyDeriver struct {
  key []byte
  now func() time.Time
}

// NewKeyDeriver keys the address hash with salt. An empty salt gets a random one, which
// keeps keys private but resets counters on restart.
func NewKeyDeriver(salt string) *KeyDeriver {
  var key []byte
  if salt == "" {
    key = make([]byte, 32)
    _, _ = rand.Read(key)
  } else {
    sum := blake2b.Sum256([]byte(salt))
    key = sum[:]
  }
  return &KeyDeriver{key: key, now: time.Now}
}

// AnonymizedIP hashes the address together with the current UTC day, so the same client
// maps to one key per day and keys cannot be joined across days.
func (d *KeyDeriver) AnonymizedIP(ip string) string {
  h, err := blake2b.New256(d.key)
  if err != nil {
    panic(err)
  }
  h.Write([]byte(d.now().UTC().Format("2006-01-02")))
  h.Write([]byte{0})
  h.Write([]byte(ip))
  return "ip:" + hex.EncodeToString(h.Sum(nil)[:16])
}

// SessionKey prefers the token's session id and falls back to the anonymized address.
func (d *KeyDeriver) SessionKey(rd *requestdata.RequestData, clientIP string) string {
  if rd != nil && rd.SessionID != "" {
    return "session:" + rd.SessionID
  }
  return d.AnonymizedIP(clientIP)
}

// ClientKey is the public-route key: the plain client address.
func (d *KeyDeriver) ClientKey(clientIP string) string {
  return "addr:" + clientIP
}
