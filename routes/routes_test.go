package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coinops/bands"
	"coinops/controllers/hardware"
	"coinops/controllers/machine"
	"coinops/controllers/rule"
	"coinops/controllers/session"
	"coinops/database"
	"coinops/engine"
	"coinops/events"
	"coinops/ledger"
	"coinops/models"
	"coinops/rules"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testHardwareKey = "test-hardware-key"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("HW_SECRET_KEY", testHardwareKey)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	broadcaster := events.NewBroadcaster(64)
	t.Cleanup(broadcaster.Close)

	ledgerSvc := ledger.New(db)
	bandsSvc := bands.New(db)
	registry := rules.New(db)
	eng := engine.New(db, ledgerSvc, bandsSvc, registry, broadcaster, decimal.NewFromInt(10))

	app := fiber.New()
	Setup(app, Handlers{
		Machine:         machine.NewHandler(db, ledgerSvc, bandsSvc),
		Rule:            rule.NewHandler(registry),
		Session:         session.NewHandler(db),
		Hardware:        hardware.NewHandler(eng),
		Broadcaster:     broadcaster,
		PressRatePerSec: 1000,
		PressRateBurst:  1000,
	})
	return app, db
}

func request(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func hwHeaders() map[string]string {
	return map[string]string{"X-Hardware-Key": testHardwareKey}
}

func createMachine(t *testing.T, app *fiber.App) models.Machine {
	t.Helper()
	status, env := request(t, app, http.MethodPost, "/machines/", fiber.Map{
		"name": "Floor Machine A",
	}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	var m models.Machine
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func TestMachineLifecycle(t *testing.T) {
	app, db := newTestApp(t)

	m := createMachine(t, app)
	assert.NotZero(t, m.ID)
	assert.NotEmpty(t, m.Number)
	assert.True(t, m.Balance.IsZero())

	// Creation seeds the default 15-minute band table.
	var bandCount int64
	require.NoError(t, db.Model(&models.TimeBand{}).
		Where("machine_id = ?", m.ID).Count(&bandCount).Error)
	assert.EqualValues(t, 96, bandCount)

	status, env := request(t, app, http.MethodPost,
		fmt.Sprintf("/machines/%d/balance/add", m.ID),
		fiber.Map{"amount": "1000", "note": "initial float"}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	// Over-withdrawing is rejected and leaves the balance alone.
	status, env = request(t, app, http.MethodPost,
		fmt.Sprintf("/machines/%d/balance/withdraw", m.ID),
		fiber.Map{"amount": "2000"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.False(t, env.Success)

	status, env = request(t, app, http.MethodGet,
		fmt.Sprintf("/machines/%d", m.ID), nil, nil)
	require.Equal(t, http.StatusOK, status)
	var fresh models.Machine
	require.NoError(t, json.Unmarshal(env.Data, &fresh))
	assert.True(t, fresh.Balance.Equal(decimal.NewFromInt(1000)))

	// One ledger row for the top-up, none for the rejected withdrawal.
	var trxCount int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("machine_id = ?", m.ID).Count(&trxCount).Error)
	assert.EqualValues(t, 1, trxCount)
}

func TestHardwareEndpointsRequireKey(t *testing.T) {
	app, _ := newTestApp(t)
	m := createMachine(t, app)
	body := fiber.Map{"machine_id": m.ID}

	status, _ := request(t, app, http.MethodPost, "/hw/sessions/start", body, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = request(t, app, http.MethodPost, "/hw/sessions/start", body,
		map[string]string{"X-Hardware-Key": "wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := request(t, app, http.MethodPost, "/hw/sessions/start", body, hwHeaders())
	assert.Equal(t, http.StatusOK, status, env.Message)
}

func TestFullSessionFlow(t *testing.T) {
	app, db := newTestApp(t)
	m := createMachine(t, app)

	// Uniform 20% bands and a 1000 starting balance.
	status, env := request(t, app, http.MethodPut,
		fmt.Sprintf("/machines/%d/bands", m.ID),
		fiber.Map{"values": []string{"20"}}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	status, env = request(t, app, http.MethodPost,
		fmt.Sprintf("/machines/%d/balance/add", m.ID),
		fiber.Map{"amount": "1000"}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = request(t, app, http.MethodPost, "/hw/sessions/start",
		fiber.Map{"machine_id": m.ID}, hwHeaders())
	require.Equal(t, http.StatusOK, status, env.Message)
	var started models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &started))
	require.NotEmpty(t, started.SessionID)

	// A second start while one is live conflicts.
	status, _ = request(t, app, http.MethodPost, "/hw/sessions/start",
		fiber.Map{"machine_id": m.ID}, hwHeaders())
	assert.Equal(t, http.StatusConflict, status)

	// 5 presses on button 1, 3 on button 2, at the default rate of 10.
	status, env = request(t, app, http.MethodPost, "/hw/sessions/press",
		fiber.Map{"machine_id": m.ID, "button_number": 1, "press_count": 5}, hwHeaders())
	require.Equal(t, http.StatusOK, status, env.Message)
	status, env = request(t, app, http.MethodPost, "/hw/sessions/press",
		fiber.Map{"machine_id": m.ID, "button_number": 2, "press_count": 3}, hwHeaders())
	require.Equal(t, http.StatusOK, status, env.Message)

	// Operator pins winners to button 1.
	status, env = request(t, app, http.MethodPost,
		fmt.Sprintf("/machines/%d/rules/manual", m.ID),
		fiber.Map{"session_id": started.SessionID, "allowed_buttons": []int{1}}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = request(t, app, http.MethodPost, "/hw/sessions/complete",
		fiber.Map{
			"machine_id": m.ID,
			"winners": []fiber.Map{
				{"button_number": 1, "pay_out_amount": "500"},
				{"button_number": 2, "pay_out_amount": "100"},
			},
		}, hwHeaders())
	require.Equal(t, http.StatusOK, status, env.Message)

	var completed models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &completed))
	assert.Equal(t, models.SessionStatusCompleted, completed.Status)
	assert.True(t, completed.TotalBetAmount.Equal(decimal.NewFromInt(80)))
	assert.True(t, completed.TotalDeductedAmount.Equal(decimal.NewFromInt(16)))
	assert.True(t, completed.FinalAmount.Equal(decimal.NewFromInt(-436)))
	assert.True(t, completed.BalanceAfter.Equal(decimal.NewFromInt(564)))

	var winners []models.Winner
	require.NoError(t, json.Unmarshal(completed.Winners, &winners))
	require.Len(t, winners, 1)
	assert.Equal(t, 1, winners[0].ButtonNumber)
	assert.Equal(t, models.WinnerTypeManual, winners[0].WinnerType)

	// The read-side endpoints expose the frozen session.
	status, env = request(t, app, http.MethodGet,
		"/sessions/"+started.SessionID, nil, nil)
	require.Equal(t, http.StatusOK, status)
	var fetched models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, models.SessionStatusCompleted, fetched.Status)
	assert.Len(t, fetched.Presses, 2)

	var trx models.Transaction
	require.NoError(t, db.Where("session_id = ?", started.SessionID).First(&trx).Error)
	assert.True(t, trx.RemainingBalance.Equal(decimal.NewFromInt(564)))
}

func TestBandEndpoints(t *testing.T) {
	app, _ := newTestApp(t)
	m := createMachine(t, app)

	status, env := request(t, app, http.MethodPut,
		fmt.Sprintf("/machines/%d/bands/09:30", m.ID),
		fiber.Map{"percentage": "42.5"}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = request(t, app, http.MethodPut,
		fmt.Sprintf("/machines/%d/bands/25:00", m.ID),
		fiber.Map{"percentage": "10"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = request(t, app, http.MethodGet,
		fmt.Sprintf("/machines/%d/bands", m.ID), nil, nil)
	require.Equal(t, http.StatusOK, status)

	var listed []models.TimeBand
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 96)
}

func TestRuleEndpointsConflict(t *testing.T) {
	app, _ := newTestApp(t)
	m := createMachine(t, app)

	status, env := request(t, app, http.MethodPost, "/hw/sessions/start",
		fiber.Map{"machine_id": m.ID}, hwHeaders())
	require.Equal(t, http.StatusOK, status, env.Message)
	var started models.GameSession
	require.NoError(t, json.Unmarshal(env.Data, &started))

	status, env = request(t, app, http.MethodPost,
		fmt.Sprintf("/machines/%d/rules/jackpot", m.ID),
		fiber.Map{"session_id": started.SessionID, "max_winners": 3}, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	// A manual rule cannot stack on the jackpot rule.
	status, _ = request(t, app, http.MethodPost,
		fmt.Sprintf("/machines/%d/rules/manual", m.ID),
		fiber.Map{"session_id": started.SessionID, "allowed_buttons": []int{1}}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = request(t, app, http.MethodDelete,
		fmt.Sprintf("/machines/%d/rules", m.ID), nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = request(t, app, http.MethodGet,
		fmt.Sprintf("/machines/%d/rules/active", m.ID), nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", strings.TrimSpace(string(env.Data)))
}

func TestWebsocketRouteRejectsPlainHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
