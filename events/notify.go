package events

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anacrolix/log"

	"github.com/anacrolix/microdlna/internal/chunked"
)

// propertySetHeader wraps service-specific eventing properties in the
// GENA <e:propertyset> envelope.
const propertySetHeader = `<?xml version="1.0"?><e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">`
const propertySetFooter = `</e:propertyset>`

func (e *Engine) notifyBody(svc Service) string {
	var props string
	switch svc {
	case ContentDirectory:
		props = `<e:property><TransferIDs></TransferIDs></e:property>` +
			`<e:property><SystemUpdateID>0</SystemUpdateID></e:property>`
	case ConnectionManager:
		sources := make([]string, len(e.mimeTable))
		for i, t := range e.mimeTable {
			sources[i] = fmt.Sprintf("http-get:*:%s:*", t.String())
		}
		props = fmt.Sprintf(`<e:property><SourceProtocolInfo>%s</SourceProtocolInfo></e:property>`,
			strings.Join(sources, ",")) +
			`<e:property><SinkProtocolInfo></SinkProtocolInfo></e:property>` +
			`<e:property><CurrentConnectionIDs>0</CurrentConnectionIDs></e:property>`
	case MediaReceiverRegistrar:
		// nothing evented; a valid, empty propertyset is still delivered.
	}
	return propertySetHeader + props + propertySetFooter
}

// startNotify spawns the goroutine that drives one notify attempt
// through Connecting -> Sending -> WaitingForResponse -> Finished/Error.
// This is the idiomatic-Go replacement for the reactor's non-blocking
// connect plus select-driven state machine: one goroutine per in-flight
// notify, still observable through the same named states.
func (e *Engine) startNotify(sub *Subscriber) {
	job := &notifyJob{state: Created, sub: sub}
	sub.mu.Lock()
	sub.notify.Set(job)
	sub.mu.Unlock()

	go e.runNotify(job)
}

func (e *Engine) runNotify(job *notifyJob) {
	job.mu.Lock()
	sub := job.sub
	job.state = Connecting
	job.mu.Unlock()

	if sub == nil {
		e.finishJob(job, Error)
		return
	}

	conn, err := net.DialTimeout("tcp", sub.Callback.Host, e.dialTimeout)
	if err != nil {
		e.logger.Levelf(log.Warning, "NOTIFY dial %s: %v", sub.Callback.Host, err)
		e.finishJob(job, Error)
		return
	}
	defer conn.Close()

	job.mu.Lock()
	job.state = Sending
	job.mu.Unlock()

	sub.mu.Lock()
	seq := sub.seq
	svc := sub.Service
	sid := sub.SID
	sub.mu.Unlock()

	path := sub.Callback.Path
	if path == "" {
		path = "/"
	}

	conn.SetDeadline(time.Now().Add(e.dialTimeout))

	var headerBuf strings.Builder
	fmt.Fprintf(&headerBuf, "NOTIFY %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&headerBuf, "HOST: %s\r\n", sub.Callback.Host)
	headerBuf.WriteString("CONTENT-TYPE: text/xml; charset=\"utf-8\"\r\n")
	fmt.Fprintf(&headerBuf, "NT: upnp:event\r\n")
	headerBuf.WriteString("NTS: upnp:propchange\r\n")
	fmt.Fprintf(&headerBuf, "SID: %s\r\n", sid)
	fmt.Fprintf(&headerBuf, "SEQ: %d\r\n", seq)
	headerBuf.WriteString("TRANSFER-ENCODING: chunked\r\n")
	headerBuf.WriteString("CONNECTION: close\r\n\r\n")

	if _, err := conn.Write([]byte(headerBuf.String())); err != nil {
		e.logger.Levelf(log.Warning, "NOTIFY write headers %s: %v", sub.Callback, err)
		e.finishJob(job, Error)
		return
	}

	cw := chunked.New(conn, chunked.MinBufferSize)
	cw.WriteString(e.notifyBody(svc))
	cw.EndStream()
	if err := cw.Err(); err != nil {
		e.logger.Levelf(log.Warning, "NOTIFY write body %s: %v", sub.Callback, err)
		e.finishJob(job, Error)
		return
	}

	job.mu.Lock()
	job.state = WaitingForResponse
	job.mu.Unlock()

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		e.logger.Levelf(log.Debug, "NOTIFY response %s: %v", sub.Callback, err)
		e.finishJob(job, Error)
		return
	}
	resp.Body.Close()

	e.finishJob(job, Finished)
}

// finishJob transitions job to its terminal state and, if its
// subscriber still points back at it, clears that back-pointer so the
// pair's 1:1 invariant holds until the next notify is started. On a
// successful delivery it also advances sub.seq in preparation for the
// next NOTIFY, skipping zero on wrap since zero is reserved for the
// very first NOTIFY a subscriber ever receives.
func (e *Engine) finishJob(job *notifyJob, final State) {
	job.mu.Lock()
	job.state = final
	sub := job.sub
	job.mu.Unlock()

	if sub == nil {
		return
	}
	sub.mu.Lock()
	if final == Finished {
		sub.seq++
		if sub.seq == 0 {
			sub.seq = 1
		}
	}
	if current, ok := sub.notify.Get(); ok && current == job {
		sub.notify.SetNone()
	}
	sub.mu.Unlock()
}
