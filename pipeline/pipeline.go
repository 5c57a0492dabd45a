package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"comicbot/types"

	"github.com/apex/log"
)

const (
	// UsageText is the reply to /search without a phrase
	UsageText = "usage: /search <phrase>"
	// ProcessingText is shown while the explanation is requested
	ProcessingText = "Обрабатываю комикс и запрашиваю пояснение…"
	// ExplanationLabel precedes the explanation in a caption
	ExplanationLabel = "Пояснение:"
)

// archiveTimeout bounds the optional archive upload
const archiveTimeout = 15 * time.Second

// noticeReleaseTimeout bounds retracting the processing notice
const noticeReleaseTimeout = 5 * time.Second

// ErrEmptyPhrase is returned for a blank search phrase
var ErrEmptyPhrase = errors.New(UsageText)

// Fetcher finds and downloads a comic
type Fetcher interface {
	Search(ctx context.Context, phrase string) (types.SearchResult, error)
	Download(ctx context.Context, url string) (*types.MediaAsset, error)
}

// Annotator explains an image. It returns text even on failure.
type Annotator interface {
	Annotate(ctx context.Context, image []byte, mime string) string
}

// Archiver keeps a copy of every delivered comic
type Archiver interface {
	Store(ctx context.Context, comic types.SearchResult, asset *types.MediaAsset, caption string) error
}

// Notifier posts and deletes transient messages in the caller's chat
type Notifier interface {
	Send(ctx context.Context, text string) (string, error)
	Delete(ctx context.Context, id string) error
}

// Result is either a photo with caption, or a text reply when Photo is nil
type Result struct {
	Comic   types.SearchResult
	Photo   *types.MediaAsset
	Caption string
	Text    string
	// Err is the failure behind Text, if any
	Err error
}

// Pipeline runs search → download → annotate → caption
type Pipeline struct {
	fetcher   Fetcher
	annotator Annotator
	archiver  Archiver
	log       log.Interface

	archives sync.WaitGroup
}

// New creates a pipeline. archiver may be nil.
func New(f Fetcher, a Annotator, archiver Archiver, logger log.Interface) *Pipeline {
	if logger == nil {
		logger = log.Log
	}
	return &Pipeline{fetcher: f, annotator: a, archiver: archiver, log: logger}
}

// Wait blocks until background archive uploads have finished
func (p *Pipeline) Wait() {
	p.archives.Wait()
}

// Run searches for phrase and explains the first comic found. Failures
// before annotation end the run with a text reply; annotation failures are
// part of the caption.
func (p *Pipeline) Run(ctx context.Context, phrase string, n Notifier) Result {
	phrase = strings.Join(strings.Fields(phrase), " ")
	if phrase == "" {
		return Result{Text: UsageText, Err: ErrEmptyPhrase}
	}

	comic, err := p.fetcher.Search(ctx, phrase)
	if err != nil {
		return failed(err)
	}

	asset, err := p.fetcher.Download(ctx, comic.URL)
	if err != nil {
		return failed(err)
	}

	var explanation string
	p.withNotice(ctx, n, ProcessingText, func() {
		explanation = p.annotator.Annotate(ctx, asset.Data, asset.ContentType)
	})

	caption := BuildCaption(comic, explanation)
	p.archive(ctx, comic, asset, caption)

	return Result{Comic: comic, Photo: asset, Caption: caption}
}

// withNotice shows text for the duration of fn and then retracts it.
// Neither posting nor retracting can fail the run.
func (p *Pipeline) withNotice(ctx context.Context, n Notifier, text string, fn func()) {
	if n == nil {
		fn()
		return
	}

	id, err := n.Send(ctx, text)
	if err != nil {
		p.log.WithError(err).Warn("failed to post processing notice")
		fn()
		return
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeReleaseTimeout)
		defer cancel()
		if err := n.Delete(releaseCtx, id); err != nil {
			p.log.WithError(err).WithField("message_id", id).Debug("failed to delete processing notice")
		}
	}()
	fn()
}

// archive uploads in the background so the reply is not held up. The upload
// outlives ctx and is bounded by archiveTimeout instead.
func (p *Pipeline) archive(ctx context.Context, comic types.SearchResult, asset *types.MediaAsset, caption string) {
	if p.archiver == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.archives.Add(1)
	go func() {
		defer p.archives.Done()
		ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
		defer cancel()
		if err := p.archiver.Store(ctx, comic, asset, caption); err != nil {
			p.log.WithError(err).WithField("url", comic.URL).Warn("failed to archive comic")
		}
	}()
}

// BuildCaption joins the optional id line, the url, a blank line, the label
// and the explanation, then trims the result
func BuildCaption(comic types.SearchResult, explanation string) string {
	lines := make([]string, 0, 5)
	if comic.HasID() {
		lines = append(lines, "id: "+comic.IDString())
	}
	lines = append(lines, comic.URL, "", ExplanationLabel, explanation)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func failed(err error) Result {
	return Result{Text: err.Error(), Err: err}
}
