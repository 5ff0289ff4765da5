package httpgin

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecetin/wedsys/internal/domain"
	"github.com/ecetin/wedsys/internal/repository"
	"github.com/ecetin/wedsys/internal/seating"
	"github.com/ecetin/wedsys/internal/service"
	"github.com/ecetin/wedsys/internal/service/admin"
	"github.com/ecetin/wedsys/internal/service/notify"
	"github.com/ecetin/wedsys/internal/service/roster"
	"github.com/ecetin/wedsys/internal/service/rsvp"
)

func NewRouter(
	svcs *service.Services,
	sessions *seating.Manager,
	sub roster.Subscriber,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events/:id", handleGetEvent(svcs))
	r.POST("/events/:id/rsvp", handleSubmitRSVP(svcs))
	r.GET("/events/:id/guests/:guestID", handleGetGuest(svcs))
	r.PUT("/events/:id/guests/:guestID/diet", handleUpdateDiet(svcs))

	// Admin API
	adm := r.Group("/admin")
	{
		adm.POST("/login", handleLogin(svcs, sessions))
		adm.POST("/events", handleCreateEvent(svcs))
		adm.GET("/events", handleListEvents(svcs))
		adm.DELETE("/events/:id", handleDeleteEvent(svcs))
		adm.POST("/events/:id/password", handleRotatePassword(svcs))

		authed := adm.Group("", SessionAuthMiddleware(sessions))
		{
			authed.POST("/logout", handleLogout(sessions))

			authed.GET("/guests", handleListGuests(svcs))
			authed.GET("/buckets", handleBuckets(svcs))
			authed.GET("/menu", handleMenuStats(svcs))
			authed.GET("/menu/stream", handleMenuStream(svcs, sub))

			authed.GET("/seating", handleSeatingSnapshot())
			authed.POST("/seating/load", handleSeatingLoad())
			authed.POST("/seating/assign", handleAssign())
			authed.POST("/seating/unassign", handleUnassign())
			authed.POST("/seating/save", handleSeatingSave(svcs))

			authed.GET("/tables", handleListTables())
			authed.GET("/tables/:label", handleTableDetail(svcs))
			authed.POST("/tables/:label/notify", handleNotifyTable(svcs))

			authed.POST("/notify/all", handleNotifyAll(svcs))
			authed.POST("/notify/mark", handleMarkNotified(svcs))
			authed.GET("/notify/history", handleNotificationHistory(svcs))

			authed.POST("/invites", handleSendInvites(svcs))
			authed.GET("/invite-link", handleInviteLink(svcs))
		}
	}

	return r
}

// --- Public handlers ---

func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svcs.Admin.GetEventSummary(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, summary, "public, max-age=60")
	}
}

func handleSubmitRSVP(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitRSVPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		rlKey := "ip:" + c.ClientIP()

		guestID, err := svcs.RSVP.Submit(c.Request.Context(), c.Param("id"), rlKey, rsvp.Submission{
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Phone:         req.Phone,
			Attendance:    req.Attendance,
			AdultCount:    req.AdultCount,
			ChildCount:    req.ChildCount,
			DietaryChoice: req.DietaryChoice,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, SubmitRSVPResponse{GuestID: guestID})
	}
}

func handleGetGuest(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, err := svcs.RSVP.Guest(c.Request.Context(), c.Param("id"), c.Param("guestID"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, g)
	}
}

func handleUpdateDiet(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateDietRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		err := svcs.RSVP.UpdateDietaryChoice(
			c.Request.Context(),
			c.Param("id"),
			c.Param("guestID"),
			req.DietaryChoice,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// --- Event lifecycle ---

func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Admin.CreateEvent(c.Request.Context(), req.EventID, req.Password); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"event_id": req.EventID})
	}
}

func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := svcs.Admin.ListEvents(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": ids})
	}
}

func handleDeleteEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svcs.Admin.DeleteEvent(
			c.Request.Context(),
			c.Param("id"),
			c.GetHeader(headerAdminSecret),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRotatePassword(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RotatePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		err := svcs.Admin.RotatePassword(
			c.Request.Context(),
			c.Param("id"),
			c.GetHeader(headerAdminSecret),
			req.NewPassword,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- Session ---

func handleLogin(svcs *service.Services, sessions *seating.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		e, err := svcs.Admin.Login(c.Request.Context(), req.EventID, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}

		sess := sessions.Open(c.Request.Context(), e.ID)

		c.JSON(http.StatusOK, LoginResponse{Token: sess.Token(), EventID: e.ID})
	}
}

func handleLogout(sessions *seating.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions.Close(sessionFrom(c).Token())
		c.Status(http.StatusNoContent)
	}
}

// --- Directory / derived views ---

func handleListGuests(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		f := roster.Filter{
			Attendance: domain.Attendance(c.Query("attendance")),
			Query:      c.Query("q"),
		}

		summary := svcs.Roster.Directory(c.Request.Context(), sess.EventID(), f)
		c.JSON(http.StatusOK, summary)
	}
}

func handleBuckets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		buckets := svcs.Roster.Buckets(c.Request.Context(), sess.EventID(), sess.Snapshot())
		c.JSON(http.StatusOK, buckets)
	}
}

func handleMenuStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		stats := svcs.Roster.MenuStats(c.Request.Context(), sess.EventID())
		c.JSON(http.StatusOK, stats)
	}
}

// handleMenuStream pushes menu stats over SSE, re-projected on every
// change notice for the session's event.
func handleMenuStream(svcs *service.Services, sub roster.Subscriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		updates := make(chan domain.MenuStats, 8)
		w := svcs.Roster.WatchMenuStats(
			c.Request.Context(),
			sub,
			sess.EventID(),
			func(stats domain.MenuStats) {
				select {
				case updates <- stats:
				default:
					// Slow consumer: drop, the next notice re-projects anyway.
				}
			},
		)
		defer w.Close()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")

		c.Stream(func(_ io.Writer) bool {
			select {
			case stats := <-updates:
				c.SSEvent("menu", stats)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

// --- Seating ---

func handleSeatingSnapshot() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sessionFrom(c).Snapshot())
	}
}

func handleSeatingLoad() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		sess.Load(c.Request.Context())
		c.JSON(http.StatusOK, sess.Snapshot())
	}
}

func handleAssign() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sess := sessionFrom(c)
		if err := sess.Assign(c.Request.Context(), req.GuestID, req.Table); err != nil {
			badRequest(c, err.Error())
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func handleUnassign() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UnassignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sessionFrom(c).Clear(req.GuestID)
		c.Status(http.StatusNoContent)
	}
}

// handleSeatingSave persists the session map and hands back the freshly
// prepared notification list, so the console can offer "send" right
// after a successful save.
func handleSeatingSave(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		if err := sess.Save(c.Request.Context()); err != nil {
			// Write-path transport errors surface raw, not softened.
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
			return
		}

		snapshot := sess.Snapshot()
		prepared, err := svcs.Notify.Prepare(c.Request.Context(), sess.EventID(), snapshot)
		if err != nil {
			respondErr(c, err)
			return
		}

		resp := SaveResponse{Saved: len(snapshot), Notifications: make([]SeatNotificationDTO, 0, len(prepared))}
		for _, n := range prepared {
			resp.Notifications = append(resp.Notifications, SeatNotificationDTO{
				GuestID:  n.GuestID,
				FullName: n.FullName,
				Table:    n.Table,
				Phone:    n.NormalizedPhone,
				Message:  n.Message,
			})
		}

		c.JSON(http.StatusOK, resp)
	}
}

// --- Tables ---

func handleListTables() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tables": sessionFrom(c).Tables()})
	}
}

func handleTableDetail(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		label := c.Param("label")

		detail := svcs.Roster.TableDetail(
			c.Request.Context(),
			sess.EventID(),
			label,
			sess.TableGuests(label),
		)
		c.JSON(http.StatusOK, detail)
	}
}

func handleNotifyTable(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		queued, err := svcs.Notify.NotifyTable(
			c.Request.Context(),
			sess.EventID(),
			sess.Snapshot(),
			c.Param("label"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusAccepted, QueuedResponse{Queued: queued})
	}
}

// --- Notifications ---

func handleNotifyAll(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		queued, err := svcs.Notify.NotifyAll(c.Request.Context(), sess.EventID(), sess.Snapshot())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusAccepted, QueuedResponse{Queued: queued})
	}
}

func handleMarkNotified(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MarkNotifiedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sess := sessionFrom(c)
		svcs.Notify.MarkNotified(c.Request.Context(), sess.EventID(), req.GuestID, req.Table)

		c.Status(http.StatusNoContent)
	}
}

func handleNotificationHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		recs, err := svcs.Notify.History(c.Request.Context(), sess.EventID())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"records": recs})
	}
}

func handleSendInvites(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendInvitesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sess := sessionFrom(c)

		invites := make([]notify.Invite, 0, len(req.Invites))
		for _, in := range req.Invites {
			invites = append(invites, notify.Invite{Phone: in.Phone, Message: in.Message})
		}

		queued := svcs.Notify.SendInvites(sess.EventID(), invites)
		c.JSON(http.StatusAccepted, QueuedResponse{Queued: queued})
	}
}

func handleInviteLink(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)

		fullName := c.Query("full_name")
		phone := c.Query("phone")

		var link string
		if fullName == "" && phone == "" {
			link = svcs.Admin.RSVPLink(sess.EventID())
		} else {
			link = svcs.Admin.PersonalLink(sess.EventID(), fullName, phone)
		}

		c.JSON(http.StatusOK, InviteLinkResponse{Link: link})
	}
}

// --- Helpers ---

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var vErr *rsvp.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: vErr.Error()})
		return
	}

	switch {
	// admin service
	case errors.Is(err, admin.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, admin.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "wrong password"})
	case errors.Is(err, admin.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin secret required"})
	case errors.Is(err, admin.ErrBadEventID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	// rsvp service
	case errors.Is(err, rsvp.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, rsvp.ErrDuplicatePhone):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "this phone already submitted an rsvp"})
	case errors.Is(err, rsvp.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many submissions"})
	case errors.Is(err, rsvp.ErrTimeout):
		// Unknown outcome, not failure: the write may still land.
		c.JSON(http.StatusAccepted, gin.H{
			"status": "pending",
			"detail": "submission not confirmed in time, it may still complete",
		})
	// repository
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
