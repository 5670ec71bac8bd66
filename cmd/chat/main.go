package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/api"
	"github.com/dany2315/BailNotarie-sub000/internal/config"
	"github.com/dany2315/BailNotarie-sub000/internal/logger"
	"github.com/dany2315/BailNotarie-sub000/internal/models"
	"github.com/dany2315/BailNotarie-sub000/internal/session"
	"github.com/dany2315/BailNotarie-sub000/internal/storage"
	"github.com/dany2315/BailNotarie-sub000/internal/transport/redispubsub"
	"github.com/dany2315/BailNotarie-sub000/internal/upload"
)

func main() {
	var (
		cfgPath = flag.String("config", "config.yaml", "configuration file")
		convID  = flag.String("conversation", "", "conversation id to open")
		userID  = flag.String("user", "", "local user id")
		role    = flag.String("role", string(models.RoleLocataire), "local user role")
	)
	flag.Parse()
	if *convID == "" || *userID == "" {
		log.Fatal("both -conversation and -user are required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	lg, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		lg.Fatalw("redis connect failed", "addr", cfg.Redis.Addr, "err", err)
	}
	tr := redispubsub.New(rdb, cfg.Redis.Prefix, lg)

	svc := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.App.Token,
		Timeout: cfg.APITimeout,
	}, lg)

	issuer, store := buildUploadBackends(ctx, cfg, svc, *convID, lg)
	pipeline := upload.NewPipeline(issuer, store, cfg.Sync.MaxFileSizeBytes, cfg.Sync.PreviewWidthPixels, lg)

	sess, err := session.Open(ctx, session.Options{
		ConversationID: *convID,
		UserID:         *userID,
		Role:           models.Role(strings.ToUpper(*role)),
		TypingQuiet:    cfg.TypingQuiet,
		TypingDecay:    cfg.TypingDecay,
		RetryDelay:     cfg.RetryDelay,
		OnChange:       render,
	}, svc, tr, pipeline, lg)
	if err != nil {
		lg.Fatalw("session open failed", "conversation", *convID, "err", err)
	}

	go readLines(sess, lg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Close(shutdownCtx); err != nil {
		lg.Warnw("session close", "err", err)
	}
	_ = rdb.Close()
	lg.Info("bye")
}

func readLines(sess *session.Session, lg *zap.SugaredLogger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sess.Keystroke()
		if id, ok := strings.CutPrefix(line, "/delete "); ok {
			if err := sess.DeleteMessage(context.Background(), strings.TrimSpace(id)); err != nil {
				lg.Warnw("delete failed", "id", id, "err", err)
			}
			continue
		}
		if err := sess.SendMessage(context.Background(), line, "", nil, nil); err != nil {
			lg.Warnw("send failed", "err", err)
		}
	}
}

func render(snap session.Snapshot) {
	status := "offline"
	if snap.CounterpartOnline {
		status = "online"
	}
	if snap.CounterpartTyping {
		status += ", typing..."
	}
	fmt.Printf("--- counterpart %s, %d items ---\n", status, len(snap.Items))
	for _, it := range snap.Items {
		switch it.Kind {
		case models.KindMessage:
			marker := ""
			if it.Delivery == models.DeliverySending {
				marker = " (sending)"
			}
			fmt.Printf("[%s] %s: %s%s\n", it.CreatedAt().Format("15:04"), it.Message.SenderID, it.Message.Content, marker)
		case models.KindRequest:
			fmt.Printf("[%s] request %q (%s, %d documents)\n", it.CreatedAt().Format("15:04"), it.Request.Title, it.Request.Status, len(it.Request.Documents))
		}
	}
}

// buildUploadBackends prefers direct S3 access when a bucket is
// configured, falling back to credentials issued by the data service and
// presigned-URL transfers.
func buildUploadBackends(ctx context.Context, cfg *config.Config, svc *api.Client, convID string, lg *zap.SugaredLogger) (upload.Issuer, upload.Store) {
	if cfg.S3.Bucket != "" {
		store, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			lg.Fatalw("s3 init failed", "err", err)
		}
		return &s3Issuer{store: store, convID: convID}, &s3Direct{store: store}
	}
	return &apiIssuer{svc: svc, convID: convID}, &presignedStore{http: storage.NewHTTPStore(2 * time.Minute)}
}

type apiIssuer struct {
	svc    *api.Client
	convID string
}

func (a *apiIssuer) IssueCredential(ctx context.Context, fileName, contentType string) (upload.Credential, error) {
	cred, err := a.svc.RequestUploadCredential(ctx, a.convID, fileName, contentType)
	if err != nil {
		return upload.Credential{}, err
	}
	return upload.Credential{TransferURL: cred.TransferURL, StorageKey: cred.StorageKey, PublicRef: cred.PublicRef}, nil
}

type s3Issuer struct {
	store  *storage.S3Store
	convID string
}

func (s *s3Issuer) IssueCredential(ctx context.Context, fileName, contentType string) (upload.Credential, error) {
	transferURL, key, publicRef, err := s.store.PresignPut(ctx, s.convID, fileName, contentType, 15*time.Minute)
	if err != nil {
		return upload.Credential{}, err
	}
	return upload.Credential{TransferURL: transferURL, StorageKey: key, PublicRef: publicRef}, nil
}

type s3Direct struct {
	store *storage.S3Store
}

func (s *s3Direct) Transfer(ctx context.Context, cred upload.Credential, contentType string, data []byte, progress func(float64)) error {
	return s.store.Transfer(ctx, cred.StorageKey, contentType, data, progress)
}

type presignedStore struct {
	http *storage.HTTPStore
}

func (p *presignedStore) Transfer(ctx context.Context, cred upload.Credential, contentType string, data []byte, progress func(float64)) error {
	return p.http.Transfer(ctx, cred.TransferURL, contentType, data, progress)
}
