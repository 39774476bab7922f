package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-core/internal/events/kafka"
	"github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
	"github.com/sheikh-saqib/banking-ledger-core/internal/storage/memory"
	"github.com/sheikh-saqib/banking-ledger-core/internal/storage/postgres"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, closeStore, err := buildStore(logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_TOPIC")
		if topic == "" {
			topic = "operation_committed"
		}
		publisher := kafka.NewPublisher(strings.Split(brokers, ","), topic)
		defer publisher.Close()
		opts = append(opts, ledger.WithEventPublisher(publisher))
		logger.Info("kafka publisher enabled", zap.String("topic", topic))
	}

	svc := ledger.New(store, opts...)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Handle string `json:"handle"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
			http.Error(w, "handle is a mandatory field", http.StatusBadRequest)
			return
		}

		acct, err := store.CreateAccount(r.Context(), req.Handle)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, acct)
	})

	mux.HandleFunc("/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		handle := r.URL.Query().Get("handle")
		if handle == "" {
			http.Error(w, "handle is a mandatory field", http.StatusBadRequest)
			return
		}

		balance, err := svc.Balance(r.Context(), handle)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Handle  string          `json:"handle"`
			Balance decimal.Decimal `json:"balance"`
		}{Handle: handle, Balance: balance})
	})

	// Deposits and withdrawals: POST applies one, GET lists them.
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				Handle string `json:"handle"`
				Type   string `json:"type"`
				Amount string `json:"amount"`
				Note   string `json:"note"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			amount, err := ledger.ParseAmount(req.Amount)
			if err != nil {
				writeError(w, err)
				return
			}

			var acct models.Account
			switch req.Type {
			case "deposit":
				acct, err = svc.Credit(r.Context(), req.Handle, amount, req.Note)
			case "withdrawal":
				acct, err = svc.Debit(r.Context(), req.Handle, amount, req.Note)
			default:
				http.Error(w, "type must be deposit or withdrawal", http.StatusBadRequest)
				return
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, acct)

		case http.MethodGet:
			listEntries(w, r, svc.Transactions)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// Transfers: POST moves money between two accounts, GET lists both
	// sides of an account's transfer history.
	mux.HandleFunc("/transfers", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				Sender   string `json:"sender"`
				Receiver string `json:"receiver"`
				Amount   string `json:"amount"`
				Note     string `json:"note"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			amount, err := ledger.ParseAmount(req.Amount)
			if err != nil {
				writeError(w, err)
				return
			}

			sender, receiver, err := svc.Transfer(r.Context(), req.Sender, req.Receiver, amount, req.Note)
			if err != nil {
				writeError(w, err)
				return
			}

			writeJSON(w, http.StatusOK, struct {
				Sender   models.Account `json:"sender"`
				Receiver models.Account `json:"receiver"`
			}{Sender: sender, Receiver: receiver})

		case http.MethodGet:
			listEntries(w, r, svc.Transfers)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Without a handle the combined log across all accounts is returned.
		if r.URL.Query().Get("handle") == "" {
			entries, err := svc.AllEntries(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, entries)
			return
		}
		listEntries(w, r, svc.History)
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// buildStore picks the Postgres store when DATABASE_URL is set and falls
// back to the in-memory store otherwise.
func buildStore(logger *zap.Logger) (interfaces.AccountStore, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Info("using in-memory store")
		return memory.NewStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("using postgres store")
	return postgres.NewStore(db), func() { db.Close() }, nil
}

// listEntries serves the GET side of the history endpoints.
func listEntries(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]models.HistoryEntry, error)) {
	handle := r.URL.Query().Get("handle")
	if handle == "" {
		http.Error(w, "handle is a mandatory field", http.StatusBadRequest)
		return
	}

	entries, err := fetch(r.Context(), handle)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the ledger's typed failures onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrSelfTransfer):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrAccountExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case models.IsInsufficientFunds(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrStorageUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
