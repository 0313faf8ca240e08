package ingest

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"
)

// MinPollingIntervalMinutes is the minimum allowed interval.
const MinPollingIntervalMinutes = 15

const (
	// MaxConcurrencyPerDomain limits parallel requests to any single feed host.
	MaxConcurrencyPerDomain = 2
	// DelayBetweenDomainRequests is the minimum delay between requests to the same host.
	DelayBetweenDomainRequests = 500 * time.Millisecond
)

// domainLimiter controls rate limiting per domain to avoid overwhelming hosts.
type domainLimiter struct {
	mu          sync.Mutex
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
}

func newDomainLimiter() *domainLimiter {
	return &domainLimiter{
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
	}
}

// acquire gets a slot for the domain, blocking if necessary. It also
// enforces the minimum delay between requests to the same domain.
func (dl *domainLimiter) acquire(ctx context.Context, domain string) error {
	dl.mu.Lock()
	sem, ok := dl.semaphores[domain]
	if !ok {
		sem = make(chan struct{}, MaxConcurrencyPerDomain)
		dl.semaphores[domain] = sem
	}
	dl.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	dl.mu.Lock()
	lastReq := dl.lastRequest[domain]
	dl.mu.Unlock()

	if !lastReq.IsZero() {
		elapsed := time.Since(lastReq)
		if elapsed < DelayBetweenDomainRequests {
			select {
			case <-time.After(DelayBetweenDomainRequests - elapsed):
			case <-ctx.Done():
				<-sem
				return ctx.Err()
			}
		}
	}
	return nil
}

// release returns a slot for the domain and records the request time.
func (dl *domainLimiter) release(domain string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.lastRequest[domain] = time.Now()
	if sem, ok := dl.semaphores[domain]; ok {
		<-sem
	}
}

// extractDomain gets the host from a URL.
func extractDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL // fallback to full URL
	}
	return u.Host
}

// Poller periodically re-ingests every registered feed of every
// publisher. Feeds are processed sequentially so each run keeps the
// pipeline's same-run duplicate guarantees; the limiter spaces out
// requests per host across runs.
type Poller struct {
	ingestor *Ingestor
	limiter  *domainLimiter
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a background poller over the ingestor's store.
func NewPoller(ingestor *Ingestor) *Poller {
	return &Poller{
		ingestor: ingestor,
		limiter:  newDomainLimiter(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			interval, _ := p.ingestor.db.GetPollingInterval()
			if interval < MinPollingIntervalMinutes {
				interval = MinPollingIntervalMinutes
			}
			log.Printf("Poller: ingesting all registered feeds (interval: %dm)", interval)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			p.runOnce(ctx)
			cancel()

			select {
			case <-p.stopChan:
				return
			case <-time.After(time.Duration(interval) * time.Minute):
			}
		}
	}()
}

func (p *Poller) runOnce(ctx context.Context) {
	publishers, err := p.ingestor.db.GetPublishers()
	if err != nil {
		log.Printf("Poller error: %v", err)
		return
	}

	created, skipped := 0, 0
	for _, pub := range publishers {
		for _, feedURL := range pub.RSSFeeds {
			domain := extractDomain(feedURL)
			if err := p.limiter.acquire(ctx, domain); err != nil {
				log.Printf("Poller cancelled: %v", err)
				return
			}
			res, err := p.ingestor.Run(ctx, pub.ID, feedURL, false)
			p.limiter.release(domain)
			if err != nil {
				log.Printf("Poller: failed to ingest %s: %v", feedURL, err)
				continue
			}
			created += res.Created
			skipped += res.Skipped
		}
	}
	log.Printf("Poller: created %d episodes (%d skipped)", created, skipped)
}

// Stop stops the poller gracefully.
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}
