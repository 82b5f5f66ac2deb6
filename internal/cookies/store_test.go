package cookies

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreGetMissing(t *testing.T) {
	s := New()

	_, ok := s.Get("example.com")
	assert.False(t, ok)
}

func TestStoreSetAndGet(t *testing.T) {
	s := New()

	s.Set("example.com", []string{"session=abc", "token=xyz"})

	value, ok := s.Get("example.com")
	assert.True(t, ok)
	assert.Equal(t, "session=abc; token=xyz", value)
}

func TestStoreLastWriteWins(t *testing.T) {
	s := New()

	s.Set("example.com", []string{"session=abc"})
	s.Set("example.com", []string{"session=def"})

	value, _ := s.Get("example.com")
	assert.Equal(t, "session=def", value)
}

func TestStoreEmptySetIgnored(t *testing.T) {
	s := New()

	s.Set("example.com", []string{"session=abc"})
	s.Set("example.com", nil)

	value, ok := s.Get("example.com")
	assert.True(t, ok)
	assert.Equal(t, "session=abc", value)
}

func TestStorePerHostname(t *testing.T) {
	s := New()

	s.Set("a.example.com", []string{"session=a"})
	s.Set("b.example.com", []string{"session=b"})

	a, _ := s.Get("a.example.com")
	b, _ := s.Get("b.example.com")
	assert.Equal(t, "session=a", a)
	assert.Equal(t, "session=b", b)
}
