package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sodiumlabs/osubot/auth"
	"github.com/sodiumlabs/osubot/crypto"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := Migrate(context.Background(), database); err != nil {
		_ = database.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = database.ExecContext(ctx, `DELETE FROM account_links WHERE platform_id LIKE 'test-%'`)
		_, _ = database.ExecContext(ctx, `DELETE FROM osu_tokens WHERE platform_id LIKE 'test-%'`)
		_ = database.Close()
	})
	return database
}

func TestLinkUnlinkRoundTrip(t *testing.T) {
	database := setupDB(t)
	links := &LinkStore{DB: database}
	ctx := context.Background()

	ok, err := links.Link(ctx, "test-osu-1", "test-plat-1")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !ok {
		t.Fatal("Link() = false, want true for fresh pair")
	}

	id, found, err := links.OsuID(ctx, "test-plat-1")
	if err != nil || !found || id != "test-osu-1" {
		t.Fatalf("OsuID = (%q, %v, %v), want (test-osu-1, true, nil)", id, found, err)
	}
	pid, found, err := links.PlatformID(ctx, "test-osu-1")
	if err != nil || !found || pid != "test-plat-1" {
		t.Fatalf("PlatformID = (%q, %v, %v)", pid, found, err)
	}

	// Re-linking the same pair is a no-op reported as false.
	ok, err = links.Link(ctx, "test-osu-1", "test-plat-1")
	if err != nil {
		t.Fatalf("Link repeat: %v", err)
	}
	if ok {
		t.Error("Link() second call = true, want false")
	}

	ok, err = links.Unlink(ctx, "test-plat-1")
	if err != nil || !ok {
		t.Fatalf("Unlink = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = links.Unlink(ctx, "test-plat-1")
	if err != nil {
		t.Fatalf("Unlink repeat: %v", err)
	}
	if ok {
		t.Error("Unlink() second call = true, want false")
	}
}

func TestLinkConflicts(t *testing.T) {
	database := setupDB(t)
	links := &LinkStore{DB: database}
	ctx := context.Background()

	if ok, err := links.Link(ctx, "test-osu-2", "test-plat-2"); err != nil || !ok {
		t.Fatalf("seed link failed: (%v, %v)", ok, err)
	}
	// Same osu! account, different platform identity.
	if ok, err := links.Link(ctx, "test-osu-2", "test-plat-3"); err != nil || ok {
		t.Errorf("Link with taken osu id = (%v, %v), want (false, nil)", ok, err)
	}
	// Same platform identity, different osu! account.
	if ok, err := links.Link(ctx, "test-osu-3", "test-plat-2"); err != nil || ok {
		t.Errorf("Link with taken platform id = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestConcurrentLinkSameOsuID(t *testing.T) {
	database := setupDB(t)
	links := &LinkStore{DB: database}
	ctx := context.Background()

	const contenders = 8
	results := make(chan bool, contenders)
	for i := 0; i < contenders; i++ {
		go func(i int) {
			ok, err := links.Link(ctx, "test-osu-race", fmt.Sprintf("test-plat-race-%d", i))
			if err != nil {
				t.Errorf("Link: %v", err)
			}
			results <- ok
		}(i)
	}
	wins := 0
	for i := 0; i < contenders; i++ {
		if <-results {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("concurrent links won = %d, want exactly 1", wins)
	}
}

func TestTokenSaveGetRemove(t *testing.T) {
	database := setupDB(t)
	tokens := &TokenStore{DB: database}
	ctx := context.Background()

	rec := auth.TokenRecord{
		PlatformID:   "test-plat-tok",
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Millisecond),
		Scopes:       []string{"public", "identify"},
	}
	if err := tokens.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := tokens.Get(ctx, "test-plat-tok")
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v)", found, err)
	}
	if got.AccessToken != rec.AccessToken || got.RefreshToken != rec.RefreshToken {
		t.Errorf("Get tokens = (%q, %q), want (%q, %q)", got.AccessToken, got.RefreshToken, rec.AccessToken, rec.RefreshToken)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, rec.ExpiresAt)
	}
	if auth.JoinScopes(got.Scopes) != "public identify" {
		t.Errorf("Scopes = %v", got.Scopes)
	}

	// Overwrite semantics: a new authorization replaces the whole record.
	rec.AccessToken = "access-new"
	rec.Scopes = []string{"public"}
	if err := tokens.Save(ctx, rec); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _, err = tokens.Get(ctx, "test-plat-tok")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if got.AccessToken != "access-new" || auth.JoinScopes(got.Scopes) != "public" {
		t.Errorf("overwrite not applied: %+v", got)
	}

	ok, err := tokens.Remove(ctx, "test-plat-tok")
	if err != nil || !ok {
		t.Fatalf("Remove = (%v, %v)", ok, err)
	}
	if _, found, _ := tokens.Get(ctx, "test-plat-tok"); found {
		t.Error("Get() found record after Remove")
	}
	if ok, _ := tokens.Remove(ctx, "test-plat-tok"); ok {
		t.Error("Remove() second call = true, want false")
	}
}

func TestExpiringTokens(t *testing.T) {
	database := setupDB(t)
	tokens := &TokenStore{DB: database}
	ctx := context.Background()

	soon := auth.TokenRecord{
		PlatformID:   "test-plat-exp-soon",
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(2 * time.Minute),
		Scopes:       []string{"public"},
	}
	later := auth.TokenRecord{
		PlatformID:   "test-plat-exp-later",
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		Scopes:       []string{"public"},
	}
	noRefresh := auth.TokenRecord{
		PlatformID:  "test-plat-exp-norefresh",
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(2 * time.Minute),
		Scopes:      []string{"public"},
	}
	for _, rec := range []auth.TokenRecord{soon, later, noRefresh} {
		if err := tokens.Save(ctx, rec); err != nil {
			t.Fatalf("Save %s: %v", rec.PlatformID, err)
		}
	}

	recs, err := tokens.ExpiringTokens(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("ExpiringTokens: %v", err)
	}
	got := map[string]bool{}
	for _, r := range recs {
		got[r.PlatformID] = true
	}
	if !got["test-plat-exp-soon"] {
		t.Error("missing soon-expiring record")
	}
	if got["test-plat-exp-later"] {
		t.Error("record outside window included")
	}
	if got["test-plat-exp-norefresh"] {
		t.Error("record without refresh token included")
	}
}

func testEncryptor(t *testing.T) crypto.Encryptor {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	enc, err := NewEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	return enc
}

func TestEncryptedTokenStore(t *testing.T) {
	database := setupDB(t)
	tokens := &TokenStore{DB: database, Enc: testEncryptor(t)}
	ctx := context.Background()

	rec := auth.TokenRecord{
		PlatformID:   "test-plat-enc-1",
		AccessToken:  "secret-access",
		RefreshToken: "secret-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scopes:       []string{"public", "identify"},
	}
	if err := tokens.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The stored columns must not hold the plaintext.
	var storedAccess, storedRefresh string
	row := database.QueryRowContext(ctx,
		`SELECT access_token, refresh_token FROM osu_tokens WHERE platform_id=$1`, rec.PlatformID)
	if err := row.Scan(&storedAccess, &storedRefresh); err != nil {
		t.Fatalf("scan stored row: %v", err)
	}
	if storedAccess == rec.AccessToken || storedRefresh == rec.RefreshToken {
		t.Error("tokens stored in plaintext despite encryptor")
	}

	got, ok, err := tokens.Get(ctx, rec.PlatformID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.AccessToken != rec.AccessToken || got.RefreshToken != rec.RefreshToken {
		t.Errorf("round trip = %q/%q, want %q/%q", got.AccessToken, got.RefreshToken, rec.AccessToken, rec.RefreshToken)
	}
}

func TestExpiringTokensEncryptedEmptyRefresh(t *testing.T) {
	database := setupDB(t)
	tokens := &TokenStore{DB: database, Enc: testEncryptor(t)}
	ctx := context.Background()

	// Under encryption the stored refresh_token column is non-empty
	// ciphertext even when the plaintext is empty; the sweep must still
	// exclude such rows.
	refreshable := auth.TokenRecord{
		PlatformID:   "test-plat-enc-soon",
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(2 * time.Minute),
		Scopes:       []string{"public"},
	}
	emptyRefresh := auth.TokenRecord{
		PlatformID:  "test-plat-enc-norefresh",
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(2 * time.Minute),
		Scopes:      []string{"public"},
	}
	for _, rec := range []auth.TokenRecord{refreshable, emptyRefresh} {
		if err := tokens.Save(ctx, rec); err != nil {
			t.Fatalf("Save %s: %v", rec.PlatformID, err)
		}
	}

	recs, err := tokens.ExpiringTokens(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("ExpiringTokens: %v", err)
	}
	got := map[string]bool{}
	for _, r := range recs {
		got[r.PlatformID] = true
	}
	if !got["test-plat-enc-soon"] {
		t.Error("missing refreshable record")
	}
	if got["test-plat-enc-norefresh"] {
		t.Error("record with empty decrypted refresh token included")
	}
}
