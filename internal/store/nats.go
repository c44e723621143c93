package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/pkg/logger"
)

// BucketName is the JetStream key-value bucket holding conversation
// documents, keyed by conversation id.
const BucketName = "conversations"

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// NATSStore is a ConversationStore backed by a NATS JetStream key-value
// bucket. Conversations are stored as JSON documents.
type NATSStore struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	logger *logger.Logger
}

// ConnectNATS connects to NATS and ensures the conversations bucket exists.
func ConnectNATS(ctx context.Context, cfg NATSConfig, log *logger.Logger) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, BucketName)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketName,
			Description: "Conversation history documents",
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open conversations bucket: %w", err)
	}

	return &NATSStore{conn: nc, kv: kv, logger: log}, nil
}

// FindByID returns the stored conversation or (nil, nil) when the key is
// absent.
func (s *NATSStore) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Upsert replaces the stored document for id with conv in one put.
func (s *NATSStore) Upsert(ctx context.Context, id string, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", id, err)
	}
	if _, err := s.kv.Put(ctx, id, data); err != nil {
		return fmt.Errorf("failed to upsert conversation %s: %w", id, err)
	}
	return nil
}

// FindWithFeedbackSince scans the bucket for conversations carrying feedback
// created at or after since. The bucket is small enough that a full scan is
// acceptable for the evaluation endpoints using it.
func (s *NATSStore) FindWithFeedbackSince(ctx context.Context, since time.Time) ([]model.Conversation, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer lister.Stop()

	var out []model.Conversation
	for key := range lister.Keys() {
		conv, err := s.FindByID(ctx, key)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			continue
		}
		if conv.HasFeedbackSince(since) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

// IsConnected reports whether the NATS connection is up.
func (s *NATSStore) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Close closes the NATS connection.
func (s *NATSStore) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
