/*
Package storage backs up the chat store to S3-compatible object storage.

Snapshots are exported from the store on a fixed interval and uploaded as
two JSON objects (users and messages) under a timestamped prefix, so a lost
data directory or database can be restored from the most recent prefix.
*/
package storage

import (
	"context"
	"time"

	"linechat/internal/pkg/logx"

	"linechat/internal/app/store"
)

const snapshotContentType = "application/json"

// BackupService periodically exports store snapshots and uploads them.
type BackupService struct {
	client   *s3Client
	exporter store.Exporter
	interval time.Duration
	done     chan struct{}
}

// NewBackupService builds the service and its S3 client. It does not start
// the backup loop; call Run for that.
func NewBackupService(cfg ClientConfig, exporter store.Exporter, interval time.Duration) (*BackupService, error) {
	client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}

	return &BackupService{
		client:   client,
		exporter: exporter,
		interval: interval,
		done:     make(chan struct{}),
	}, nil
}

// Run uploads one snapshot per interval until ctx is canceled or Stop is
// called. Upload failures are logged and retried on the next tick.
func (b *BackupService) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	logx.Info("Snapshot backup service started", "interval", b.interval.String())

	for {
		select {
		case <-ticker.C:
			if err := b.backupOnce(ctx); err != nil {
				logx.Error(err, "Snapshot backup failed")
			}

		case <-ctx.Done():
			return

		case <-b.done:
			return
		}
	}
}

// Stop terminates the backup loop.
func (b *BackupService) Stop() {
	close(b.done)
}

func (b *BackupService) backupOnce(ctx context.Context) error {
	snap, err := b.exporter.ExportSnapshot(ctx)
	if err != nil {
		return err
	}

	prefix := "snapshots/" + snap.TakenAt.UTC().Format("20060102T150405Z")

	if err := b.client.Upload(ctx, prefix+"/users.json", snapshotContentType, snap.Users); err != nil {
		return err
	}
	if err := b.client.Upload(ctx, prefix+"/messages.json", snapshotContentType, snap.Messages); err != nil {
		return err
	}

	logx.Info("Snapshot uploaded",
		"prefix", prefix,
		"users_bytes", len(snap.Users),
		"messages_bytes", len(snap.Messages),
	)
	return nil
}
