package blob

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "test-secret", "https://haven.test")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSaveDownload(t *testing.T) {
	s := testStore(t)
	ref, err := s.Save([]byte("payload"), ".png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Fatalf("extension not kept: %q", ref)
	}
	data, err := s.Download(context.Background(), ref)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("round trip mismatch: %q", data)
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	s := testStore(t)
	for _, ref := range []string{"../secret", "a/b", "", "a..b/c"} {
		if _, err := s.Download(context.Background(), ref); !errors.Is(err, ErrBadRef) {
			t.Fatalf("ref %q: want ErrBadRef, got %v", ref, err)
		}
	}
}

func TestDownloadMissing(t *testing.T) {
	s := testStore(t)
	if _, err := s.Download(context.Background(), "no-such-ref"); !errors.Is(err, ErrNoBlob) {
		t.Fatalf("want ErrNoBlob, got %v", err)
	}
}

func parseSigned(t *testing.T, raw string) (ref string, exp int64, sig string) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	ref = strings.TrimPrefix(u.Path, "/blobs/")
	exp, err = strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	if err != nil {
		t.Fatalf("parse exp: %v", err)
	}
	return ref, exp, u.Query().Get("sig")
}

func TestSignedURLVerify(t *testing.T) {
	s := testStore(t)
	raw, err := s.SignedURL(context.Background(), "abc.m4a", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(raw, "https://haven.test/blobs/abc.m4a?") {
		t.Fatalf("unexpected url %q", raw)
	}
	ref, exp, sig := parseSigned(t, raw)
	if err := s.Verify(ref, exp, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.Verify(ref, exp+1, sig); !errors.Is(err, ErrBadSig) {
		t.Fatalf("tampered expiry should fail signature check, got %v", err)
	}
	if err := s.Verify("other.m4a", exp, sig); !errors.Is(err, ErrBadSig) {
		t.Fatalf("ref swap should fail signature check, got %v", err)
	}
}

func TestSignedURLExpiry(t *testing.T) {
	s := testStore(t)
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	raw, _ := s.SignedURL(context.Background(), "abc.m4a", time.Minute)
	ref, exp, sig := parseSigned(t, raw)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if err := s.Verify(ref, exp, sig); !errors.Is(err, ErrExpiredURL) {
		t.Fatalf("want ErrExpiredURL, got %v", err)
	}
}

func TestSignatureDependsOnSecret(t *testing.T) {
	a := testStore(t)
	b, err := New(t.TempDir(), "other-secret", "https://haven.test")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	raw, _ := a.SignedURL(context.Background(), "abc.m4a", time.Minute)
	ref, exp, sig := parseSigned(t, raw)
	if err := b.Verify(ref, exp, sig); !errors.Is(err, ErrBadSig) {
		t.Fatalf("foreign secret should reject, got %v", err)
	}
}
