package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrClientCodeTaken = errors.New("client_code already registered")

var accentReplacer = strings.NewReplacer(
	"Á", "A", "À", "A", "Ä", "A", "Â", "A",
	"É", "E", "È", "E", "Ë", "E", "Ê", "E",
	"Í", "I", "Ì", "I", "Ï", "I", "Î", "I",
	"Ó", "O", "Ò", "O", "Ö", "O", "Ô", "O",
	"Ú", "U", "Ù", "U", "Ü", "U", "Û", "U",
	"Ñ", "N", "Ç", "C",
)

// codeInitial is the letter a client code starts with: the first letter of
// the name without accents, or X when the name does not start with a letter.
func codeInitial(fullName string) string {
	words := strings.Fields(fullName)
	if len(words) == 0 {
		return "X"
	}
	first := []rune(accentReplacer.Replace(strings.ToUpper(words[0])))[0]
	if first > unicode.MaxASCII || !unicode.IsLetter(first) {
		return "X"
	}
	return string(first)
}

// nextClientCode hands out the next code for the name's initial, e.g. M12.
// Codes already taken by manual entry are skipped. The counter row stays
// locked until tx ends, so concurrent creations for one initial queue up.
func nextClientCode(tx *gorm.DB, fullName string) (string, error) {
	initial := codeInitial(fullName)

	seed := model.ClientCode{Alphabet: initial}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("failed to create client code counter: %w", err)
	}
	var counter model.ClientCode
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("alphabet = ?", initial).First(&counter).Error; err != nil {
		return "", fmt.Errorf("failed to lock client code counter: %w", err)
	}

	for {
		counter.Number++
		counter.Code = fmt.Sprintf("%s%d", initial, counter.Number)
		taken, err := clientCodeTaken(tx, counter.Code, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
	}
	if err := tx.Save(&counter).Error; err != nil {
		return "", fmt.Errorf("failed to update client code counter: %w", err)
	}
	return counter.Code, nil
}

// clientCodeTaken also counts deleted clients; their codes are never reused.
func clientCodeTaken(tx *gorm.DB, code string, exceptID uint) (bool, error) {
	q := tx.Unscoped().Model(&model.Client{}).Where("client_code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// normalizeCodenames lowercases and trims medical condition codenames.
func normalizeCodenames(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" && !util.Contains(v, out) {
			out = append(out, v)
		}
	}
	return out
}

// unknownConditions returns the codenames missing from the medical condition catalog.
func unknownConditions(db *gorm.DB, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var known []string
	if err := db.Model(&model.MedicalCondition{}).Where("codename IN ?", codes).Pluck("codename", &known).Error; err != nil {
		return nil, err
	}
	var missing []string
	for _, code := range codes {
		if !util.Contains(code, known) {
			missing = append(missing, code)
		}
	}
	return missing, nil
}

func conditionsKnownOrRespond(c *gin.Context, db *gorm.DB, codes []string) bool {
	missing, err := unknownConditions(db, codes)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check medical conditions", Err: err})
		return false
	}
	if len(missing) > 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg:  "Unknown medical conditions",
			Err:  fmt.Errorf("unknown codenames: %s", strings.Join(missing, ", ")),
			Data: map[string]interface{}{"unknown": missing},
		})
		return false
	}
	return true
}

// applyClientProfile copies the fields a client may edit on their own profile.
// Empty strings and nil slices leave the stored value alone; an empty slice clears it.
func applyClientProfile(client *model.Client, req model.ClientRequest) {
	if name := util.NormalizeName(req.FullName); name != "" {
		client.FullName = name
	}
	if req.PhoneNumber != "" {
		client.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	}
	if req.DateOfBirth != "" {
		client.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != "" {
		client.Gender = req.Gender
	}
	if req.Address != "" {
		client.Address = strings.TrimSpace(req.Address)
	}
	if req.MedicalConditions != nil {
		client.MedicalConditions = util.JoinCSV(req.MedicalConditions)
	}
	if req.Allergies != nil {
		client.Allergies = util.JoinCSV(req.Allergies)
	}
	if req.Medications != nil {
		client.Medications = util.JoinCSV(req.Medications)
	}
}

type clientListQuery struct {
	Keyword string
	Active  *bool
	SortBy  string
	SortDir string
}

func parseClientListQuery(c *gin.Context) clientListQuery {
	q := clientListQuery{
		Keyword: strings.TrimSpace(c.Query("keyword")),
		SortBy:  c.Query("sort"),
		SortDir: c.Query("sort_dir"),
	}
	switch c.Query("active") {
	case "true":
		v := true
		q.Active = &v
	case "false":
		v := false
		q.Active = &v
	}
	return q
}

func (q clientListQuery) apply(db *gorm.DB) *gorm.DB {
	if q.Keyword != "" {
		kw := "%" + q.Keyword + "%"
		db = db.Where("full_name LIKE ? OR client_code LIKE ? OR email LIKE ? OR phone_number LIKE ?", kw, kw, kw, kw)
	}
	if q.Active != nil {
		db = db.Where("is_active = ?", *q.Active)
	}
	return db
}

func fetchClients(db *gorm.DB, q clientListQuery, limit, offset int) ([]model.Client, int64, error) {
	var clients []model.Client
	query := q.apply(db.Model(&model.Client{}))
	dir := orderDirection(q.SortDir)
	switch q.SortBy {
	case "full_name":
		query = query.Order("full_name " + dir)
	case "client_code":
		query = query.Order("client_code " + dir)
	default:
		query = query.Order("created_at DESC")
	}
	if err := query.Limit(limit).Offset(offset).Find(&clients).Error; err != nil {
		return nil, 0, err
	}

	var total int64
	if err := q.apply(db.Model(&model.Client{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// ListClients godoc
// @Summary      List clients
// @Description  Paginated client list with keyword search over name, code, email and phone
// @Tags         Client
// @Produce      json
// @Security     SessionToken
// @Param        keyword query string false "Search keyword"
// @Param        active query bool false "Only active (true) or inactive (false) clients"
// @Param        sort query string false "Optional sort field: full_name|client_code"
// @Param        sort_dir query string false "Optional sort direction: asc|desc"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "Clients retrieved"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /client [get]
func ListClients(c *gin.Context) {
	query := parseClientListQuery(c)
	page, limit, offset := util.Pagination(c)

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	clients, total, err := fetchClients(db, query, limit, offset)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve clients", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Clients retrieved",
		Data: listResponse("clients", clients, total, page, limit, len(clients)),
	})
}

// GetClient godoc
// @Summary      Get client
// @Tags         Client
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Client ID"
// @Success      200 {object} util.APIResponse{data=model.Client} "Client retrieved"
// @Failure      404 {object} util.APIResponse "Client not found"
// @Router       /client/{id} [get]
func GetClient(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var client model.Client
	if !findByIDOrRespond(c, db, &client, id, "Client") {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Client retrieved", Data: client})
}

// CreateClient godoc
// @Summary      Create client
// @Description  Registers a client at the front desk. The client code is generated from the name's initial unless given.
// @Tags         Client
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body model.ClientRequest true "Client"
// @Success      201 {object} util.APIResponse{data=model.Client} "Client created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      409 {object} util.APIResponse "Client code or email already registered"
// @Router       /client [post]
func CreateClient(c *gin.Context) {
	var req model.ClientRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	req.FullName = util.NormalizeName(req.FullName)
	if req.FullName == "" {
		util.CallUserError(c, util.APIErrorParams{Msg: "full_name is required", Err: fmt.Errorf("invalid payload")})
		return
	}
	req.MedicalConditions = normalizeCodenames(req.MedicalConditions)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	if !conditionsKnownOrRespond(c, db, req.MedicalConditions) {
		return
	}
	if req.Email != "" {
		var n int64
		if err := db.Model(&model.Client{}).Where("email = ?", req.Email).Count(&n).Error; err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check existing client", Err: err})
			return
		}
		if n > 0 {
			util.CallConflict(c, util.APIErrorParams{Msg: "A client with this email already exists", Err: fmt.Errorf("client duplicate detected")})
			return
		}
	}

	client := model.Client{Email: req.Email, Notes: req.Notes, IsActive: boolValue(req.IsActive, true)}
	applyClientProfile(&client, req)

	err := db.Transaction(func(tx *gorm.DB) error {
		code := strings.ToUpper(strings.TrimSpace(req.ClientCode))
		if code == "" {
			var err error
			if code, err = nextClientCode(tx, client.FullName); err != nil {
				return err
			}
		} else if taken, err := clientCodeTaken(tx, code, 0); err != nil {
			return err
		} else if taken {
			return ErrClientCodeTaken
		}
		client.ClientCode = code
		return tx.Create(&client).Error
	})
	if errors.Is(err, ErrClientCodeTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
		util.CallConflict(c, util.APIErrorParams{Msg: "Client code already registered", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create client", Err: err})
		return
	}

	util.CallCreated(c, util.APISuccessParams{Msg: "Client created", Data: client})
}

// UpdateClient godoc
// @Summary      Update client
// @Tags         Client
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Client ID"
// @Param        request body model.ClientRequest true "Fields to update"
// @Success      200 {object} util.APIResponse{data=model.Client} "Client updated"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      404 {object} util.APIResponse "Client not found"
// @Failure      409 {object} util.APIResponse "Client code already registered"
// @Router       /client/{id} [patch]
func UpdateClient(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req model.ClientRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	if req.MedicalConditions != nil {
		req.MedicalConditions = normalizeCodenames(req.MedicalConditions)
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var client model.Client
	if !findByIDOrRespond(c, db, &client, id, "Client") {
		return
	}
	if !conditionsKnownOrRespond(c, db, req.MedicalConditions) {
		return
	}

	applyClientProfile(&client, req)
	if req.Email != "" {
		client.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Notes != "" {
		client.Notes = req.Notes
	}
	client.IsActive = boolValue(req.IsActive, client.IsActive)
	if code := strings.ToUpper(strings.TrimSpace(req.ClientCode)); code != "" && code != client.ClientCode {
		taken, err := clientCodeTaken(db, code, client.ID)
		if err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check client code", Err: err})
			return
		}
		if taken {
			util.CallConflict(c, util.APIErrorParams{Msg: "Client code already registered", Err: ErrClientCodeTaken})
			return
		}
		client.ClientCode = code
	}

	if err := db.Save(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.CallConflict(c, util.APIErrorParams{Msg: "Client code already registered", Err: ErrClientCodeTaken})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update client", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Client updated", Data: client})
}

// countUpcoming counts active appointments on or after today where column equals id.
func countUpcoming(db *gorm.DB, column string, id uint, today string) (int64, error) {
	var n int64
	err := db.Model(&model.Appointment{}).
		Where(column+" = ? AND date >= ?", id, today).
		Where("status NOT IN ?", model.InactiveStatuses).
		Count(&n).Error
	return n, err
}

// DeleteClient godoc
// @Summary      Delete client
// @Description  Soft delete. Clients with upcoming appointments cannot be deleted; cancel them first.
// @Tags         Client
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Client ID"
// @Success      200 {object} util.APIResponse "Client deleted"
// @Failure      404 {object} util.APIResponse "Client not found"
// @Failure      409 {object} util.APIResponse "Client has upcoming appointments"
// @Router       /client/{id} [delete]
func DeleteClient(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var client model.Client
	if !findByIDOrRespond(c, db, &client, id, "Client") {
		return
	}

	today := middleware.GetClinic(c).Now().Format(schedule.DateLayout)
	upcoming, err := countUpcoming(db, "client_id", client.ID, today)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check appointments", Err: err})
		return
	}
	if upcoming > 0 {
		util.CallConflict(c, util.APIErrorParams{
			Msg:  "Client has upcoming appointments",
			Err:  fmt.Errorf("%d upcoming appointments", upcoming),
			Data: map[string]interface{}{"upcoming": upcoming},
		})
		return
	}

	if err := db.Delete(&client).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete client", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Client deleted", Data: map[string]interface{}{"id": id}})
}

// ClientStats summarizes a client's appointment history.
type ClientStats struct {
	Total      int64   `json:"total"`
	Completed  int64   `json:"completed"`
	Cancelled  int64   `json:"cancelled"`
	NoShow     int64   `json:"no_show"`
	Upcoming   int64   `json:"upcoming"`
	TotalSpent float64 `json:"total_spent"`
}

func clientStats(db *gorm.DB, clientID uint, today string) (ClientStats, error) {
	var rows []struct {
		Status model.AppointmentStatus
		N      int64
		Amount float64
	}
	err := db.Model(&model.Appointment{}).
		Select("status, COUNT(*) as n, COALESCE(SUM(price), 0) as amount").
		Where("client_id = ?", clientID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return ClientStats{}, err
	}
	var s ClientStats
	for _, r := range rows {
		s.Total += r.N
		switch r.Status {
		case model.StatusCompleted:
			s.Completed = r.N
			s.TotalSpent = r.Amount
		case model.StatusCancelled:
			s.Cancelled = r.N
		case model.StatusNoShow:
			s.NoShow = r.N
		}
	}
	s.Upcoming, err = countUpcoming(db, "client_id", clientID, today)
	return s, err
}

// GetClientHistory godoc
// @Summary      Client appointment history
// @Description  All appointments of a client, newest first, with totals
// @Tags         Client
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Client ID"
// @Param        status query string false "Status"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "History retrieved"
// @Failure      404 {object} util.APIResponse "Client not found"
// @Router       /client/{id}/history [get]
func GetClientHistory(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var client model.Client
	if !findByIDOrRespond(c, db, &client, id, "Client") {
		return
	}
	respondClientHistory(c, db, client, appointmentFilter{ClientID: client.ID})
}

func respondClientHistory(c *gin.Context, db *gorm.DB, client model.Client, filter appointmentFilter) {
	if status := model.AppointmentStatus(c.Query("status")); status != "" {
		if !model.ValidStatus(status) {
			util.CallUserError(c, util.APIErrorParams{Msg: "Unknown status", Err: fmt.Errorf("status %q", status)})
			return
		}
		filter.Status = status
	}
	page, limit, offset := util.Pagination(c)
	order := "DESC"
	if filter.DateFrom != "" {
		order = "ASC"
	}
	rows, total, err := fetchAppointments(db, filter, order, limit, offset)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve appointments", Err: err})
		return
	}
	stats, err := clientStats(db, client.ID, middleware.GetClinic(c).Now().Format(schedule.DateLayout))
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to compute client stats", Err: err})
		return
	}

	data := listResponse("appointments", rows, total, page, limit, len(rows))
	data["client"] = client
	data["stats"] = stats
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "History retrieved", Data: data})
}
