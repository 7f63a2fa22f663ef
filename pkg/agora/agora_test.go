package agora

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAppID = "970CA35de60c44645bbae8a215061b33"
	testCert  = "5CFd2fd1755d40ecb72977518be15d3b"
)

const (
	serviceRTC uint16 = 1
	serviceRTM uint16 = 2

	privJoinChannel uint16 = 1
	privLogin       uint16 = 1
)

var errBadToken = errors.New("bad token")

// decodedToken is the readable content of a single-service "007" token.
type decodedToken struct {
	AppID     string
	IssueTs   uint32
	Expire    uint32
	Salt      uint32
	Service   uint16
	Privilege map[uint16]uint32
	Channel   string
	Account   string
}

type tokenReader struct {
	buf []byte
	off int
	err error
}

func (r *tokenReader) take(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *tokenReader) u16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }
func (r *tokenReader) u32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }
func (r *tokenReader) str() string { return string(r.take(int(r.u16()))) }

func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func hmacSHA256(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// decodeToken unpacks tok and checks its signature against cert.
func decodeToken(t *testing.T, tok, cert string) (*decodedToken, error) {
	t.Helper()
	if len(tok) < 4 || tok[:3] != "007" {
		return nil, errBadToken
	}
	raw, err := base64.StdEncoding.DecodeString(tok[3:])
	if err != nil {
		return nil, errBadToken
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errBadToken
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, errBadToken
	}

	r := &tokenReader{buf: data}
	sig := r.str()
	bodyStart := r.off
	d := &decodedToken{Privilege: map[uint16]uint32{}}
	d.AppID = r.str()
	d.IssueTs = r.u32()
	d.Expire = r.u32()
	d.Salt = r.u32()
	if r.u16() != 1 {
		return nil, errBadToken
	}
	d.Service = r.u16()
	for i, n := 0, int(r.u16()); i < n; i++ {
		k := r.u16()
		d.Privilege[k] = r.u32()
	}
	if d.Service == serviceRTC {
		d.Channel = r.str()
	}
	d.Account = r.str()
	if r.err != nil {
		return nil, errBadToken
	}

	key := hmacSHA256(le32(d.Salt), hmacSHA256(le32(d.IssueTs), []byte(cert)))
	if !hmac.Equal(hmacSHA256(key, data[bodyStart:]), []byte(sig)) {
		return nil, errBadToken
	}
	return d, nil
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(testAppID, testCert, 600*time.Second)
	require.NoError(t, err)
	return b
}

func TestDeriveUIDDeterministic(t *testing.T) {
	ids := []string{
		"7d444840-9dc0-11d1-b245-5ffdce74fad2",
		"0b6b4c1e-1f2a-4c7d-9e51-3a7f0c2d8e90",
		"patient-1",
	}
	for _, id := range ids {
		a, err := DeriveUID(id)
		require.NoError(t, err)
		b, err := DeriveUID(id)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.NotZero(t, a)
		assert.LessOrEqual(t, a, uint32(0x7fffffff))
	}

	upper, _ := DeriveUID("ABC-DEF")
	lower, _ := DeriveUID("abc-def")
	assert.Equal(t, upper, lower)
}

func TestDeriveUIDRejectsEmpty(t *testing.T) {
	_, err := DeriveUID("   ")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestRTCTokenCarriesChannelAndUID(t *testing.T) {
	b := newTestBuilder(t)
	before := uint32(time.Now().Unix())

	tok, err := b.RTCToken(context.Background(), "sala_123", 2882341273, RolePatient)
	require.NoError(t, err)

	d, err := decodeToken(t, tok, testCert)
	require.NoError(t, err)
	assert.Equal(t, testAppID, d.AppID)
	assert.Equal(t, serviceRTC, d.Service)
	assert.Equal(t, "sala_123", d.Channel)
	assert.Equal(t, strconv.Itoa(2882341273), d.Account)
	assert.GreaterOrEqual(t, d.IssueTs, before)
	assert.Equal(t, uint32(600), d.Expire)
	assert.NotZero(t, d.Salt)
	assert.Len(t, d.Privilege, 4)
	for _, exp := range d.Privilege {
		assert.Equal(t, uint32(600), exp)
	}
}

func TestRTCTokenSubscriberOnlyJoins(t *testing.T) {
	b := newTestBuilder(t)

	tok, err := b.RTCToken(context.Background(), "sala_123", 7, RoleSubscriber)
	require.NoError(t, err)

	d, err := decodeToken(t, tok, testCert)
	require.NoError(t, err)
	assert.Equal(t, map[uint16]uint32{privJoinChannel: 600}, d.Privilege)
}

func TestRTMTokenSignedWithCertificate(t *testing.T) {
	b := newTestBuilder(t)
	tok, err := b.RTMToken(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = decodeToken(t, tok, "00000000000000000000000000000000")
	assert.ErrorIs(t, err, errBadToken)

	d, err := decodeToken(t, tok, testCert)
	require.NoError(t, err)
	assert.Equal(t, "user-1", d.Account)
	assert.Equal(t, serviceRTM, d.Service)
	assert.Equal(t, map[uint16]uint32{privLogin: 600}, d.Privilege)
}

func TestBuilderValidation(t *testing.T) {
	_, err := NewBuilder("", testCert, time.Minute)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewBuilder("app", "cert", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	b, err := NewBuilder(testAppID, testCert, 0)
	require.NoError(t, err)
	assert.Equal(t, 3000*time.Second, b.TTL())

	_, err = b.RTCToken(context.Background(), "", 1, RolePatient)
	assert.ErrorIs(t, err, ErrEmptyChannel)
	_, err = b.RTMToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyUser)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RolePatient, ParseRole(""))
	assert.Equal(t, RolePsychologist, ParseRole("Psychologist"))
	assert.Equal(t, RoleSubscriber, ParseRole("audience"))
	assert.Equal(t, RolePatient, ParseRole("whatever"))
}
