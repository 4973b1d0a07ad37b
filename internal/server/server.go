// Package server streams audio over websockets into one decoder per
// connection and serves prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/sphinx-go/audio"
	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/decoder"
	"github.com/ieee0824/sphinx-go/internal/logging"
)

// Message types exchanged on /decode.
const (
	TypeEnd         = "end"
	TypeSpeechStart = "speech_start"
	TypeSpeechEnd   = "speech_end"
	TypeFinal       = "final"
	TypeError       = "error"
)

// Segment is a word of a result.
type Segment struct {
	Word   string `json:"word"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Filler bool   `json:"filler,omitempty"`
}

// Event is a JSON message sent to the client.
type Event struct {
	Type     string    `json:"type"`
	UttID    string    `json:"utt,omitempty"`
	Time     float64   `json:"time,omitempty"`
	Text     string    `json:"text,omitempty"`
	Score    int32     `json:"score,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Options configures a Server.
type Options struct {
	Config   *config.Config
	Models   *decoder.Models
	Metrics  *decoder.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	// DecoderOptions are appended to the options every decoder is built with.
	DecoderOptions []decoder.Option
}

// Server is the HTTP surface.
type Server struct {
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a server. Every connection gets a decoder built from
// opts.Config over the shared opts.Models.
func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		log:  opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.mux.HandleFunc("/decode", s.handleDecode)
	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok\n")) })
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) newDecoder(log *zap.Logger) (*decoder.Decoder, error) {
	opts := []decoder.Option{
		decoder.WithModels(s.opts.Models),
		decoder.WithLogger(log),
		decoder.WithMetrics(s.opts.Metrics),
	}
	opts = append(opts, s.opts.DecoderOptions...)
	return decoder.New(s.opts.Config, opts...)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := logging.WithFields(r.Context(), zap.String("conn", uuid.NewString()))
	log := logging.FromContext(ctx, s.log)
	defer logging.Recover(log)

	dec, err := s.newDecoder(log)
	if err == nil {
		err = dec.StartUtt()
	}
	if err != nil {
		log.Error("decoder setup failed", zap.Error(err))
		conn.WriteJSON(Event{Type: TypeError, Error: err.Error()})
		return
	}
	log.Info("stream opened")

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read failed", zap.Error(err))
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if err := s.feed(conn, dec, data); err != nil {
				log.Warn("decode failed", zap.Error(err))
				conn.WriteJSON(Event{Type: TypeError, Error: err.Error()})
				return
			}
		case websocket.TextMessage:
			var msg Event
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != TypeEnd {
				conn.WriteJSON(Event{Type: TypeError, Error: "expected {\"type\":\"end\"}"})
				continue
			}
			if err := s.finish(conn, dec); err != nil {
				log.Warn("end of stream failed", zap.Error(err))
				conn.WriteJSON(Event{Type: TypeError, Error: err.Error()})
			}
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			log.Info("stream closed", zap.Float64("speech", dec.AllTime().Speech))
			return
		}
	}
}

func (s *Server) feed(conn *websocket.Conn, dec *decoder.Decoder, data []byte) error {
	samples, err := audio.DecodePCM16(data)
	if err != nil {
		return err
	}
	_, events, err := dec.ProcessRaw(samples, false, false)
	for _, ev := range events {
		out := Event{UttID: ev.UttID, Time: ev.Time, Type: TypeSpeechStart}
		if ev.Kind == decoder.SpeechEnd {
			out.Type = TypeSpeechEnd
			fillResult(&out, ev.Hypothesis, ev.Segments)
		}
		if werr := conn.WriteJSON(out); werr != nil {
			return werr
		}
	}
	return err
}

func (s *Server) finish(conn *websocket.Conn, dec *decoder.Decoder) error {
	if err := dec.EndUtt(); err != nil {
		return err
	}
	hyp, err := dec.GetHyp()
	if err != nil {
		return err
	}
	var segs []decoder.Segment
	it, err := dec.SegIter()
	if err != nil {
		return err
	}
	for it.Next() {
		segs = append(segs, it.Segment())
	}
	if err := it.Err(); err != nil {
		return err
	}
	out := Event{Type: TypeFinal, UttID: dec.UttID()}
	fillResult(&out, hyp, segs)
	return conn.WriteJSON(out)
}

func fillResult(ev *Event, hyp *decoder.Hypothesis, segs []decoder.Segment) {
	if hyp != nil {
		ev.Text, ev.Score = hyp.Text, hyp.Score
	}
	for _, s := range segs {
		ev.Segments = append(ev.Segments, Segment{Word: s.Word, Start: s.Start, End: s.End, Filler: s.Filler})
	}
}
