package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/bazaar.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bazaar", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.Header)
	assert.Equal(t, 300, cfg.Market.IdempotencyTTL)
	assert.Equal(t, "exports", cfg.Exports.Path)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("BAZAAR_DB_PATH", "/tmp/envtest.db")

	path := writeConfig(t, `
database:
  path: ${BAZAAR_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/envtest.db", cfg.Database.Path)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: bazaar
  environment: test
database:
  path: /tmp/bazaar.db
market:
  fee_rate_bps: 30
  listings:
    - owner: alice
      name: lamp
      quantity: 10
      price_asset: 1
      price_amount: 5
  accounts:
    - account: bob
      asset: 1
      amount: 1000
  pools:
    - asset_a: 1
      reserve_a: 1000000
      asset_b: 2
      reserve_b: 1000000
api:
  port: 9000
  auth:
    enabled: true
    keys:
      - key: secret-1
        account: alice
      - key: secret-2
        account: bob
  rate_limit:
    rps: 10
    burst: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(30), cfg.Market.FeeRateBps)
	require.Len(t, cfg.Market.Listings, 1)
	assert.Equal(t, uint32(10), cfg.Market.Listings[0].Quantity)
	require.Len(t, cfg.Market.Pools, 1)
	assert.Equal(t, 9000, cfg.API.Port)
	require.Len(t, cfg.API.Auth.Keys, 2)
}

func TestValidateRejectsMissingDBPath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: bazaar
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}

func TestValidateRejectsBadFeeRate(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/bazaar.db
market:
  fee_rate_bps: 10000
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsSelfPairedPool(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/bazaar.db
market:
  pools:
    - asset_a: 1
      reserve_a: 10
      asset_b: 1
      reserve_b: 10
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsDuplicateAPIKeys(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/bazaar.db
api:
  auth:
    enabled: true
    keys:
      - key: same
        account: alice
      - key: same
        account: bob
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate api key")
}

func TestValidateRejectsOwnerlessSeedListing(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/bazaar.db
market:
  listings:
    - name: lamp
      quantity: 1
`)

	_, err := Load(path)
	assert.Error(t, err)
}
