package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	utils "uploadflow/internal"
	"uploadflow/internal/catalog"
	"uploadflow/internal/config"
	"uploadflow/internal/preview"
	"uploadflow/internal/staging"
	"uploadflow/internal/upload"
)

type uploadFlags struct {
	parent         string
	message        string
	apiURL         string
	apiKey         string
	accept         string
	single         bool
	replace        bool
	concurrency    int
	previews       bool
	confirmRetries int
}

var uploadOpts uploadFlags

var uploadCmd = &cobra.Command{
	Use:   "upload [flags] FILE...",
	Short: "Upload files as one batch and confirm them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _, err := loadProfile()
		if err != nil {
			return err
		}

		applyUploadFlags(cmd, profile)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runUpload(ctx, profile, args)
	},
}

func init() {
	cfg := config.Load()

	f := uploadCmd.Flags()
	f.StringVar(&uploadOpts.parent, "parent", "", "parent UUID the files belong to (default: a new UUID)")
	f.StringVarP(&uploadOpts.message, "message", "m", "", "comment stored with the uploaded files")
	f.StringVar(&uploadOpts.apiURL, "api-url", cfg.APIURL, "catalog API base URL")
	f.StringVar(&uploadOpts.apiKey, "api-key", cfg.APIKey, "catalog API key")
	f.StringVar(&uploadOpts.accept, "accept", "", "accept expression, e.g. image/* or .pdf,.step")
	f.BoolVar(&uploadOpts.single, "single", false, "stage only the first file")
	f.BoolVar(&uploadOpts.replace, "single-image", false, "single image mode, a selection replaces the staged file")
	f.IntVar(&uploadOpts.concurrency, "concurrency", 0, "simultaneous uploads, 0 for all at once")
	f.BoolVar(&uploadOpts.previews, "previews", false, "render previews of staged images")
	f.IntVar(&uploadOpts.confirmRetries, "confirm-retries", 2, "confirmation retries after a failure")

	rootCmd.AddCommand(uploadCmd)
}

// applyUploadFlags lets explicitly set flags override the profile.
func applyUploadFlags(cmd *cobra.Command, p *config.Profile) {
	f := cmd.Flags()

	if f.Changed("accept") {
		p.Accept = uploadOpts.accept
	}
	if f.Changed("single") {
		multiple := !uploadOpts.single
		p.Multiple = &multiple
	}
	if f.Changed("single-image") {
		p.SingleImageMode = uploadOpts.replace
	}
	if f.Changed("concurrency") {
		p.Concurrency = uploadOpts.concurrency
	}
	if f.Changed("previews") {
		p.Preview.Enabled = uploadOpts.previews
	}
}

// batchReport tracks the last status of every file for the final summary.
type batchReport struct {
	mu    sync.Mutex
	final map[string]upload.FileStatus
	sizes map[string]int64
}

func (r *batchReport) record(st upload.FileStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.final[st.Filename] = st

	entry := log.WithField("filename", st.Filename)
	switch st.Status {
	case upload.StatusUploading:
		entry.WithField("progress", fmt.Sprintf("%.0f%%", st.Progress*100)).Debug("Uploading")
	case upload.StatusCompleted:
		entry.WithField("size", utils.ShowSize(r.sizes[st.Filename])).Info("Uploaded")
	case upload.StatusFailed:
		entry.WithField("reason", st.Error).Warn("Upload failed")
	}
}

func (r *batchReport) counts() (succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.final {
		switch st.Status {
		case upload.StatusCompleted:
			succeeded++
		case upload.StatusFailed:
			failed++
		}
	}

	return succeeded, failed
}

func runUpload(ctx context.Context, profile *config.Profile, paths []string) error {
	parent := uploadOpts.parent
	if parent == "" {
		parent = uuid.NewString()
	} else if _, err := uuid.Parse(parent); err != nil {
		return fmt.Errorf("invalid --parent: %w", err)
	}

	if n := utf8.RuneCountInString(uploadOpts.message); n > upload.MaxCommitMsgLength {
		return fmt.Errorf("--message is %d characters, at most %d are allowed", n, upload.MaxCommitMsgLength)
	}

	files, err := staging.FromPaths(paths)
	if err != nil {
		return err
	}

	report := &batchReport{
		final: make(map[string]upload.FileStatus),
		sizes: make(map[string]int64, len(files)),
	}
	for _, f := range files {
		report.sizes[f.Name] = f.Size
	}

	confirmed := make(chan int, 1)
	confirmFailed := make(chan error, 1)

	var previewer upload.Previewer
	if profile.Preview.Enabled {
		previewer = preview.NewGenerator(preview.Options{
			Width:     profile.Preview.Width,
			Quality:   profile.Preview.Quality,
			ConvertTo: profile.Preview.ConvertTo,
		})
	}

	client := catalog.NewClient(log, uploadOpts.apiURL, uploadOpts.apiKey, &http.Client{Timeout: 30 * time.Second})

	orchestrator := upload.New(log, client, client, catalog.NewTransport(log, nil), upload.Options{
		Filter: staging.Filter{
			Accept:   profile.Accept,
			Multiple: profile.IsMultiple(),
			Replace:  profile.SingleImageMode,
		},
		ParentUUID:       parent,
		CommitMsg:        uploadOpts.message,
		Concurrency:      profile.Concurrency,
		ProgressInterval: profile.ProgressInterval,
		Previewer:        previewer,
		Hooks: upload.Hooks{
			FilenamesStaged: func(names []string) {
				log.WithField("files", len(names)).WithField("parent_uuid", parent).Info("Uploading batch")
			},
			StatusChanged: report.record,
			PreviewReady: func(name string, p preview.Preview) {
				log.WithFields(logrus.Fields{
					"filename": name,
					"width":    p.Width,
					"height":   p.Height,
				}).Info("Preview ready")
			},
			Confirmed: func(count int) { confirmed <- count },
			Error: func(err error) {
				if errors.Is(err, upload.ErrConfirmation) {
					confirmFailed <- err
					return
				}
				log.WithError(err).Debug("Upload error")
			},
		},
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() { _ = orchestrator.Run(runCtx) }()

	if err := orchestrator.Dispatch(runCtx, upload.FilesSelected{Files: files}); err != nil {
		return err
	}

	snap, err := orchestrator.Snapshot(runCtx)
	if err != nil {
		return err
	}
	if len(snap.Files) == 0 {
		return errors.New("no files accepted for upload")
	}
	if skipped := len(files) - len(snap.Files); skipped > 0 {
		log.WithField("skipped", skipped).Warn("Some files were not accepted")
	}

	if err := orchestrator.Dispatch(runCtx, upload.UploadRequested{}); err != nil {
		return err
	}

	retries := 0
	for {
		select {
		case count := <-confirmed:
			succeeded, failed := report.counts()
			log.WithFields(logrus.Fields{
				"parent_uuid": parent,
				"confirmed":   count,
				"succeeded":   succeeded,
				"failed":      failed,
			}).Info("Batch confirmed")

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to upload", failed, succeeded+failed)
			}

			return nil
		case err := <-confirmFailed:
			if retries >= uploadOpts.confirmRetries {
				return err
			}
			retries++

			backoff := time.Duration(retries) * time.Second
			log.WithError(err).WithField("retry_in", backoff).Warn("Confirmation failed, retrying")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			if err := orchestrator.Dispatch(runCtx, upload.ConfirmRetried{}); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
