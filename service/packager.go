package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"SceneStudio-server/models"
)

// ArchiveStore 打包产物的落地面，*Storage 天然满足
type ArchiveStore interface {
	Upload(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error)
}

// Packager 把全部分镜素材收进一个 zip：
// images/scene-<index>.png 与 audio/scene-<index>.mp3。
// 单个资源拉取失败只记录并跳过，整体打包仍然完成。
type Packager struct {
	store ArchiveStore
	http  *http.Client
	now   func() time.Time
}

func NewPackager(store ArchiveStore) *Packager {
	return &Packager{
		store: store,
		http:  &http.Client{Timeout: 60 * time.Second},
		now:   time.Now,
	}
}

// Package 按分镜数上报百分比进度，返回归档的下载 URL
func (p *Packager) Package(ctx context.Context, runID string, scenes models.SceneList, onProgress func(percent int)) (string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	total := len(scenes)
	for i, sc := range scenes {
		if sc.MediaUrl != "" {
			name := fmt.Sprintf("images/scene-%d.png", sc.Index)
			if err := p.addRemoteFile(ctx, zw, name, sc.MediaUrl); err != nil {
				log.Printf("打包跳过 %s: %v", name, err)
			}
		}
		if sc.AudioUrl != "" {
			name := fmt.Sprintf("audio/scene-%d.mp3", sc.Index)
			if err := p.addRemoteFile(ctx, zw, name, sc.AudioUrl); err != nil {
				log.Printf("打包跳过 %s: %v", name, err)
			}
		}
		if onProgress != nil && total > 0 {
			onProgress((i + 1) * 100 / total)
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("归档写入失败: %w", err)
	}

	objectName := fmt.Sprintf("runs/%s/package-%s.zip", runID, p.now().Format("20060102-150405"))
	return p.store.Upload(ctx, bytes.NewReader(buf.Bytes()), objectName, int64(buf.Len()))
}

func (p *Packager) addRemoteFile(ctx context.Context, zw *zip.Writer, name, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
