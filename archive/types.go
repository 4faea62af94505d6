package archive

import (
	"context"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tileproxy/gateway"
	"tileproxy/routing"
)

// putObjectAPI - часть s3.Client, используемая архивом
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// job - один тайл, ожидающий записи
type job struct {
	key         string
	contentType string
	data        []byte
	provider    string
	requestID   string
}

// ObjectKey строит ключ объекта: {prefix}/{provider}[/{layer}]/{z}/{x}/{y}.{ext}.
// Для провайдеров со слоями в ключ попадает нормализованный слой, поэтому
// запросы, ведущие на один и тот же тайл апстрима, пишутся в один объект.
func ObjectKey(prefix string, req *gateway.TileRequest) string {
	parts := []string{prefix, req.Provider.String()}
	if req.Provider.SupportsLayer() {
		parts = append(parts, routing.LayerParam(req.Layer))
	}
	parts = append(parts,
		strconv.FormatUint(uint64(req.Tile.Z), 10),
		strconv.FormatUint(uint64(req.Tile.X), 10),
		strconv.FormatUint(uint64(req.Tile.Y), 10)+"."+req.Ext,
	)
	// path.Join пропускает пустой префикс
	return path.Join(parts...)
}
