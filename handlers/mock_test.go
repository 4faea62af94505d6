package handlers

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tileproxy/gateway"
)

func TestMockHandler_ReturnsPNG(t *testing.T) {
	handler := NewMockHandler()

	for _, provider := range gateway.Providers {
		t.Run(provider.String(), func(t *testing.T) {
			resp := handler.Handle(&gateway.TileRequest{
				Provider: provider,
				Tile:     maptile.New(3, 4, 5),
				Ext:      "png",
			})

			require.NoError(t, resp.Error)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "image/png", resp.Headers.Get("Content-Type"))
			assert.Equal(t, gateway.CacheControlValue, resp.Headers.Get("Cache-Control"))
			assert.Equal(t, "*", resp.Headers.Get("Access-Control-Allow-Origin"))

			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, TileSize, img.Bounds().Dx())
			assert.Equal(t, TileSize, img.Bounds().Dy())
		})
	}
}

func TestRenderTile_GoogleLayersDiffer(t *testing.T) {
	satellite, err := RenderTile(&gateway.TileRequest{Provider: gateway.Google, Tile: maptile.New(1, 1, 2)})
	require.NoError(t, err)
	hybrid, err := RenderTile(&gateway.TileRequest{Provider: gateway.Google, Layer: "y", Tile: maptile.New(1, 1, 2)})
	require.NoError(t, err)

	assert.NotEqual(t, satellite, hybrid)
}
