package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/GrainArc/GlebaMap/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type memCache struct {
	mu          sync.Mutex
	gen         int64
	data        []byte
	dataGen     int64
	sets        int
	invalidated int
}

func (c *memCache) Generation(context.Context) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, true
}

func (c *memCache) Get(_ context.Context, gen int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil || c.dataGen != gen {
		return nil, false
	}
	return c.data, true
}

func (c *memCache) Set(_ context.Context, gen int64, b []byte) {
	c.mu.Lock()
	c.data, c.dataGen = b, gen
	c.sets++
	c.mu.Unlock()
}

func (c *memCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.gen++
	c.data = nil
	c.invalidated++
	c.mu.Unlock()
}

// gatedCache 第一次 Set 在 release 关闭前阻塞
type gatedCache struct {
	memCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedCache) Set(ctx context.Context, gen int64, b []byte) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.release
	}
	c.memCache.Set(ctx, gen, b)
}

func str(s string) *string { return &s }

const squareFeature = `{"type":"Feature","properties":{"x":1},"geometry":{"type":"Polygon","coordinates":[[[-47.9,-15.8],[-47.8,-15.8],[-47.8,-15.7],[-47.9,-15.7],[-47.9,-15.8]]]}}`

const largeSquareFeature = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-47.9,-15.8],[-47.7,-15.8],[-47.7,-15.6],[-47.9,-15.6],[-47.9,-15.8]]]}}`

const lineFeature = `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[0,0.01]]}}`

type collection struct {
	Features []struct {
		Geometry   json.RawMessage        `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

func decodeCollection(t *testing.T, b []byte) collection {
	t.Helper()
	var fc collection
	require.NoError(t, json.Unmarshal(b, &fc))
	return fc
}
