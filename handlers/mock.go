package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"tileproxy/gateway"
	"tileproxy/logger"
)

// TileSize - размер генерируемого тайла в пикселях
const TileSize = 256

// Цвет фона по провайдеру, чтобы в браузере было видно, какой слой отрисован
var providerColors = map[gateway.Provider]color.RGBA{
	gateway.OSM:         {R: 0xe8, G: 0xe0, B: 0xd8, A: 0xff},
	gateway.OpenTopoMap: {R: 0xd8, G: 0xe8, B: 0xc8, A: 0xff},
	gateway.Esri:        {R: 0x3a, G: 0x4a, B: 0x3a, A: 0xff},
	gateway.Google:      {R: 0x2a, G: 0x3a, B: 0x4a, A: 0xff},
}

var gridColor = color.RGBA{R: 0xc0, G: 0x30, B: 0x30, A: 0xff}

// MockHandler - реализация RequestHandler без обращения к сети.
// Возвращает сгенерированный PNG с теми же заголовками кэширования.
type MockHandler struct{}

// NewMockHandler создает новый экземпляр тестового обработчика
func NewMockHandler() *MockHandler {
	return &MockHandler{}
}

// Handle реализует интерфейс RequestHandler
func (h *MockHandler) Handle(req *gateway.TileRequest) *gateway.TileResponse {
	logger.Debug("MockHandler: %s layer=%q z=%d x=%d y=%d",
		req.Provider, req.Layer, req.Tile.Z, req.Tile.X, req.Tile.Y)

	data, err := RenderTile(req)
	if err != nil {
		return gateway.ErrorResponse(http.StatusInternalServerError, "internal server error", err)
	}

	headers := gateway.SuccessHeaders("image/png")
	headers.Set("Content-Length", strconv.Itoa(len(data)))

	return &gateway.TileResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       io.NopCloser(bytes.NewReader(data)),
	}
}

// RenderTile рисует тайл: фон провайдера, рамка и шахматная подсветка по координатам
func RenderTile(req *gateway.TileRequest) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))

	bg, ok := providerColors[req.Provider]
	if !ok {
		bg = color.RGBA{A: 0xff}
	}
	// Соседние тайлы различаются яркостью
	if (req.Tile.X+req.Tile.Y)%2 == 1 {
		bg.R, bg.G, bg.B = bg.R/8*7, bg.G/8*7, bg.B/8*7
	}
	// Гибридный слой Google отмечается более светлым фоном
	if req.Provider == gateway.Google && req.Layer == "y" {
		bg.G += 0x20
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	for i := 0; i < TileSize; i++ {
		img.Set(i, 0, gridColor)
		img.Set(i, TileSize-1, gridColor)
		img.Set(0, i, gridColor)
		img.Set(TileSize-1, i, gridColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
