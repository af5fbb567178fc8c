package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/reis-engine/internal/config"
)

func TestSecondsToDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, secondsToDuration(10))
	assert.Equal(t, time.Duration(0), secondsToDuration(0))
}

func TestZapLevelFromString(t *testing.T) {
	_, err := zapLevelFromString("")
	assert.Error(t, err)

	_, err = zapLevelFromString("not-a-level")
	assert.Error(t, err)

	lvl, err := zapLevelFromString("warn")
	assert.NoError(t, err)
	assert.Equal(t, "warn", lvl.String())
}

func TestBuildRegistry_CoversEveryConfiguredBinary(t *testing.T) {
	cfg := config.NewDefaultConfig()
	reg := buildRegistry(cfg)

	for _, name := range []string{"pdf", "ms-word", "ms-excel", "ms-ppt", "libre-office", "outlook", "markdown", "html", "code", "json/xml/yaml", "plain"} {
		assert.NotNil(t, reg.ByName(name), "provider %q must be registered", name)
	}
	assert.NoError(t, reg.CheckDisjointExtensions())
}

func TestBuildBlobStore_UnsetReturnsNilStore(t *testing.T) {
	cfg := config.NewDefaultConfig()
	store, err := buildBlobStore(nil, cfg) //nolint:staticcheck // nil context is fine: the unset path never dials out
	assert.NoError(t, err)
	assert.Nil(t, store)
}

func TestBuildVectorStore_UnsupportedTypeErrors(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.StoreType = "made-up"
	_, err := buildVectorStore(nil, cfg, nil) //nolint:staticcheck // nil context: rejected before any dial
	assert.Error(t, err)
}
