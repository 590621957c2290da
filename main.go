package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"callbridge/agent"
	"callbridge/models"
	"callbridge/services"
	"callbridge/speech"
	"callbridge/store"
	"callbridge/telephony"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: cannot retrieve env file, using environment variables")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "ws://localhost:" + port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configStore, err := openConfigStore()
	if err != nil {
		log.Fatalf("config store: %v", err)
	}
	defer configStore.Close()

	if err := seedRoutes(ctx, configStore); err != nil {
		log.Fatalf("seed routes: %v", err)
	}

	openaiClient := openai.NewClient(os.Getenv("OPENAI_API_KEY"))

	var firestoreClient *services.FirestoreClient
	if fc, err := services.InitFirestore(ctx); err != nil {
		log.Printf("Warning: Failed to initialize Firestore: %v", err)
	} else {
		firestoreClient = fc
		defer firestoreClient.Close()
		log.Println("Firestore initialized successfully")
	}

	hub := services.NewWebSocketHub()
	go hub.Run()

	router := telephony.NewCallRouter(telephony.RouterConfig{
		BaseURL:     baseURL,
		Store:       configStore,
		Factory:     agent.NewFactory(os.Getenv("OPENAI_API_KEY")),
		Transcriber: speech.NewWhisper(openaiClient),
		Synthesizer: speech.NewTTS(openaiClient, os.Getenv("TTS_VOICE")),
		Observer:    &services.CallObserver{Hub: hub, Firestore: firestoreClient},
	})
	router.StartSweeper(ctx, 5*time.Minute, 30*time.Minute)

	// gin.SetMode(gin.ReleaseMode)
	app := gin.Default()
	app.POST("/inbound/*path", inboundHandler(router))
	app.GET("/media-stream/:call_id", mediaStreamHandler(router))
	app.GET("/monitor/:call_id", monitorHandler(router, hub))

	srv := &http.Server{Addr: ":" + port, Handler: app}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	log.Printf("listening on :%s (media base %s)", port, baseURL)

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	router.Shutdown(shutdownCtx)
	srv.Shutdown(shutdownCtx)
}

// openConfigStore selects the route store backend from CONFIG_STORE and
// wraps it in a short read-through cache so webhook lookups stay cheap.
func openConfigStore() (store.ConfigStore, error) {
	var backend store.ConfigStore
	var err error
	switch os.Getenv("CONFIG_STORE") {
	case "", "redis":
		url := os.Getenv("REDIS_URL")
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		backend, err = store.NewRedis(url)
	case "badger":
		backend, err = store.NewBadger(store.BadgerOptions{Dir: os.Getenv("BADGER_DIR")})
	case "memory":
		backend = store.NewMemory()
	default:
		return nil, errors.New("unknown CONFIG_STORE backend")
	}
	if err != nil {
		return nil, err
	}
	return store.NewCached(backend, 30*time.Second), nil
}

const hvacPreamble = `You are a friendly phone receptionist for Apex Heating and Cooling.
Answer questions about heating, ventilation and air conditioning service.
Business hours are Monday through Friday, 8am to 6pm. Emergency service is
available around the clock for customers on a maintenance plan.
Keep answers short and conversational; this is a phone call.
When the caller asks about hours, report intent regular_hours.
When you cannot help, or the caller asks for a person, report intent
human_attention. When the caller says goodbye, end the call.`

// seedRoutes writes the default route at boot unless one is already
// configured under the same path.
func seedRoutes(ctx context.Context, s store.ConfigStore) error {
	const path = "/inbound_call"
	if _, err := s.Get(ctx, path); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	route := models.RouteConfig{
		Path: path,
		Agent: models.AgentConfig{
			Type:                 models.AgentChatGPT,
			InitialMessage:       models.Str("Thanks for calling Apex Heating and Cooling, how can I help you today?"),
			PromptPreamble:       models.Str(hvacPreamble),
			FallbackMessage:      "Let me connect you with one of our team members who can help.",
			IntentClassification: true,
			Model:                openai.GPT4oMini,
		},
		Twilio: models.TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		},
	}
	if err := route.Validate(); err != nil {
		return err
	}
	return s.Put(ctx, path, route)
}

// inboundHandler accepts the carrier's inbound-call webhook and answers
// with the TwiML that opens the media stream.
func inboundHandler(router *telephony.CallRouter) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.GetHeader("I-Twilio-Idempotency-Token")
		if eventID == "" {
			eventID = uuid.New().String()
		}
		ev := telephony.InboundEvent{
			EventID:   eventID,
			CallID:    c.PostForm("CallSid"),
			From:      c.PostForm("From"),
			To:        c.PostForm("To"),
			Path:      c.Param("path"),
			AuthToken: c.PostForm("AuthToken"),
		}

		answer, err := router.OnInbound(c.Request.Context(), ev)
		if err != nil {
			c.JSON(statusForInboundError(err), gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Type", "text/xml")
		c.String(http.StatusOK, answer)
	}
}

func statusForInboundError(err error) int {
	switch {
	case errors.Is(err, telephony.ErrBadEvent):
		return http.StatusBadRequest
	case errors.Is(err, telephony.ErrAuthFailed):
		return http.StatusForbidden
	case errors.Is(err, telephony.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConfigInvalid):
		return http.StatusInternalServerError
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mediaStreamHandler upgrades the carrier's media websocket and hands the
// stream to its ringing session.
func mediaStreamHandler(router *telephony.CallRouter) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return func(c *gin.Context) {
		callID := c.Param("call_id")
		if router.Session(callID) == nil {
			log.Printf("Connection attempt for unknown call: %s", callID)
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Error upgrading connection: %v", err)
			return
		}

		ms, err := telephony.NewTwilioStream(conn)
		if err != nil {
			log.Printf("Media stream handshake failed for %s: %v", callID, err)
			conn.Close()
			return
		}
		if ms.CallID() != callID {
			log.Printf("Media stream call mismatch: url %s, start %s", callID, ms.CallID())
			ms.Close()
			return
		}
		if err := router.Attach(ms); err != nil {
			log.Printf("Attach failed for %s: %v", callID, err)
		}
	}
}

// monitorHandler upgrades dashboard clients that watch a call's live
// transcript.
func monitorHandler(router *telephony.CallRouter, hub *services.WebSocketHub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return func(c *gin.Context) {
		callID := c.Param("call_id")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Error upgrading connection: %v", err)
			return
		}

		client := &services.Client{
			ID:     uuid.New().String(),
			Conn:   conn,
			CallID: callID,
			Send:   make(chan []byte, 16),
			Hub:    hub,
		}

		status := "waiting"
		if sess := router.Session(callID); sess != nil {
			status = "active"
		}
		// The hello goes through the send channel so WritePump stays the
		// connection's only writer once broadcasts start.
		hello, err := json.Marshal(models.ConnectionResponse{
			Type:    "connection",
			Status:  status,
			Message: "Subscribed to call transcript",
			CallID:  callID,
		})
		if err != nil {
			log.Printf("Error marshaling connection response: %v", err)
		} else {
			client.Send <- hello
		}
		hub.Register <- client
		go client.WritePump()

		// Reads only serve to notice the client going away.
		go func() {
			defer func() { hub.Unregister <- client }()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
