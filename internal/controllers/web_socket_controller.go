package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/view"
)

const writeWait = 10 * time.Second

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browsers and the mobile web client connect from other origins
	},
}

// LocationData is a position frame sent by a driver's device.
type LocationData struct {
	BusID     string            `json:"bus_id"`
	Latitude  *float64          `json:"latitude"`
	Longitude *float64          `json:"longitude"`
	Occupancy *models.Occupancy `json:"occupancy"`
	// Timestamp is when the device took the fix.
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts timestamps with or without a zone suffix; zoneless
// values are taken as UTC. A missing timestamp is left zero.
func (ld *LocationData) UnmarshalJSON(data []byte) error {
	type alias LocationData
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(ld)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts := aux.Timestamp
	if ts == "" {
		ld.Timestamp = time.Time{}
		return nil
	}
	if !hasZone(ts) {
		ts += "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"raw_timestamp": aux.Timestamp,
			"parse_error":   err,
		}).Warn("Failed to parse location timestamp")
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	ld.Timestamp = t
	return nil
}

func hasZone(ts string) bool {
	if strings.HasSuffix(ts, "Z") {
		return true
	}
	if len(ts) < 6 {
		return false
	}
	tail := ts[len(ts)-6:]
	return (tail[0] == '+' || tail[0] == '-') && tail[3] == ':'
}

// authenticateWebSocket validates the token query parameter. Sockets are
// opened by browsers, which cannot set an Authorization header.
func authenticateWebSocket(c *gin.Context) (string, auth.Role, error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return "", auth.Guest, errors.New("missing authentication token")
	}
	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		return "", auth.Guest, fmt.Errorf("invalid token: %w", err)
	}
	return claims.UserID, auth.RoleFromClaim(claims.Role), nil
}

func writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// drain reads and discards client frames until the connection closes.
func drain(conn *websocket.Conn, log *logrus.Entry) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Info("WebSocket closed")
			} else {
				log.WithError(err).Debug("WebSocket read ended")
			}
			return
		}
	}
}

// BusStream pushes raw bus change events, optionally narrowed to route_id.
func (h *Handler) BusStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	routeID := c.Query("route_id")
	log := logrus.WithFields(logrus.Fields{"stream": "buses", "route_id": routeID, "conn_ptr": fmt.Sprintf("%p", conn)})
	log.Info("Bus stream connected")

	sub := h.GW.SubscribeBuses(routeID, func(ev realtime.ChangeEvent) {
		if err := writeJSON(conn, ev); err != nil {
			log.WithError(err).Debug("Failed to send bus change")
		}
	})
	defer sub.Unsubscribe()

	drain(conn, log)
}

// BoardStream sends the passenger board on connect and again after every
// change on the route.
func (h *Handler) BoardStream(c *gin.Context) {
	q, ok := h.passengerQuery(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()
	log := logrus.WithFields(logrus.Fields{"stream": "board", "route_id": q.RouteID, "conn_ptr": fmt.Sprintf("%p", conn)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board := view.NewPassengerBoard(h.GW, h.ETA, h.addresser())
	v, err := board.Reload(ctx, q)
	if err != nil {
		log.WithError(err).Warn("Initial board load failed")
	} else if err := writeJSON(conn, v); err != nil {
		return
	}
	// follow the route that was actually selected
	if q.RouteID == "" && v.Selected != nil {
		q.RouteID = v.Selected.ID
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		board.Watch(ctx, h.GW, q, func(v view.PassengerView) {
			if err := writeJSON(conn, v); err != nil {
				log.WithError(err).Debug("Failed to send board")
			}
		})
	}()

	drain(conn, log)
	cancel()
	<-done
}

// AdminStream sends the admin dashboard on connect and after every change.
func (h *Handler) AdminStream(c *gin.Context) {
	_, role, err := authenticateWebSocket(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if role != auth.Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()
	log := logrus.WithFields(logrus.Fields{"stream": "admin", "conn_ptr": fmt.Sprintf("%p", conn)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board := view.NewAdminBoard(h.GW)
	if v, err := board.Reload(ctx); err == nil {
		if err := writeJSON(conn, v); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		board.Watch(ctx, h.GW, func(v view.AdminView) {
			if err := writeJSON(conn, v); err != nil {
				log.WithError(err).Debug("Failed to send dashboard")
			}
		})
	}()

	drain(conn, log)
	cancel()
	<-done
}

// DriverSocket accepts LocationData frames from a signed-in driver and
// applies them to the driver's bus. Each frame is answered with an ack or
// an error.
func (h *Handler) DriverSocket(c *gin.Context) {
	userID, role, err := authenticateWebSocket(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if role != auth.Driver {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()
	log := logrus.WithFields(logrus.Fields{"stream": "driver", "user_id": userID, "conn_ptr": fmt.Sprintf("%p", conn)})
	log.Info("Driver WebSocket connection established")

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Info("Driver WebSocket closed")
			} else {
				log.WithError(err).Debug("Driver WebSocket read ended")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		reply := h.processDriverLocation(context.Background(), userID, p)
		if err := writeJSON(conn, reply); err != nil {
			log.WithError(err).Debug("Failed to ack location")
			return
		}
	}
}

func (h *Handler) processDriverLocation(ctx context.Context, userID string, p []byte) gin.H {
	var loc LocationData
	if err := json.Unmarshal(p, &loc); err != nil {
		return gin.H{"error": "invalid location frame: " + err.Error()}
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		return gin.H{"error": "latitude and longitude are required"}
	}
	_, bus, err := h.GW.DriverBus(ctx, userID)
	if err != nil {
		return gin.H{"error": err.Error()}
	}
	if loc.BusID != "" && !strings.EqualFold(strings.TrimSpace(loc.BusID), bus.ID) {
		return gin.H{"error": "bus is not assigned to this driver"}
	}
	updated, err := h.GW.UpdateBusLocationAt(ctx, bus.ID, models.LatLng{Lat: *loc.Latitude, Lng: *loc.Longitude}, loc.Occupancy, loc.Timestamp)
	if err != nil {
		return gin.H{"error": err.Error()}
	}
	return gin.H{"status": "ok", "bus_id": updated.ID, "last_updated": updated.LastUpdated}
}
