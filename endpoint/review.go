package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateReviewRequest struct {
	AppointmentID uint   `json:"appointment_id" binding:"required" example:"12"`
	Rating        int    `json:"rating" binding:"required,gte=1,lte=5" example:"5"`
	Comment       string `json:"comment" binding:"max=2000" example:"Excelente atención"`
}

type ModerateReviewRequest struct {
	Status model.ReviewStatus `json:"status" binding:"required,oneof=approved rejected" example:"approved"`
	Note   string             `json:"note" example:"Contains personal data"`
}

// ReviewResponse is a review joined with display names.
type ReviewResponse struct {
	model.Review
	ClientName       string `json:"client_name" gorm:"column:client_name"`
	ProfessionalName string `json:"professional_name" gorm:"column:professional_name"`
	TreatmentName    string `json:"treatment_name" gorm:"column:treatment_name"`
}

func reviewListQuery(db *gorm.DB) *gorm.DB {
	return db.Table("reviews").
		Select("reviews.*, clients.full_name as client_name, professionals.full_name as professional_name, treatments.name as treatment_name").
		Joins("LEFT JOIN clients ON clients.id = reviews.client_id").
		Joins("LEFT JOIN professionals ON professionals.id = reviews.professional_id").
		Joins("LEFT JOIN treatments ON treatments.id = reviews.treatment_id").
		Where("reviews.deleted_at IS NULL")
}

func fetchReviews(db *gorm.DB, status model.ReviewStatus, professionalID uint, limit, offset int) ([]ReviewResponse, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		q = q.Where("reviews.status = ?", status)
		if professionalID != 0 {
			q = q.Where("reviews.professional_id = ?", professionalID)
		}
		return q
	}

	var rows []ReviewResponse
	if err := filter(reviewListQuery(db)).Order("reviews.created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var total int64
	if err := filter(db.Model(&model.Review{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ReviewSummary is the public rating of a professional.
type ReviewSummary struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

func approvedSummary(db *gorm.DB, professionalID uint) (ReviewSummary, error) {
	var s ReviewSummary
	q := db.Model(&model.Review{}).
		Select("COUNT(*) as count, COALESCE(AVG(rating), 0) as average").
		Where("status = ?", model.ReviewApproved)
	if professionalID != 0 {
		q = q.Where("professional_id = ?", professionalID)
	}
	err := q.Scan(&s).Error
	return s, err
}

// ListReviews godoc
// @Summary      Public reviews
// @Description  Approved reviews, newest first, with the average rating
// @Tags         Review
// @Produce      json
// @Param        professional_id query int false "Professional ID"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "Reviews retrieved"
// @Router       /review [get]
func ListReviews(c *gin.Context) {
	var professionalID uint
	if v := c.Query("professional_id"); v != "" {
		id, ok := util.ParseUintParam(v)
		if !ok {
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid professional_id", Err: fmt.Errorf("invalid professional_id")})
			return
		}
		professionalID = id
	}
	page, limit, offset := util.Pagination(c)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	rows, total, err := fetchReviews(db, model.ReviewApproved, professionalID, limit, offset)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve reviews", Err: err})
		return
	}
	summary, err := approvedSummary(db, professionalID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to compute rating", Err: err})
		return
	}
	data := listResponse("reviews", rows, total, page, limit, len(rows))
	data["summary"] = summary
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Reviews retrieved", Data: data})
}

// ListPendingReviews godoc
// @Summary      Reviews awaiting moderation
// @Tags         Review
// @Produce      json
// @Security     SessionToken
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "Reviews retrieved"
// @Router       /review/pending [get]
func ListPendingReviews(c *gin.Context) {
	page, limit, offset := util.Pagination(c)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	rows, total, err := fetchReviews(db, model.ReviewPending, 0, limit, offset)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve reviews", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Pending reviews retrieved",
		Data: listResponse("reviews", rows, total, page, limit, len(rows)),
	})
}

// ModerateReview godoc
// @Summary      Approve or reject a review
// @Tags         Review
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Review ID"
// @Param        request body ModerateReviewRequest true "Decision"
// @Success      200 {object} util.APIResponse{data=model.Review} "Review moderated"
// @Failure      400 {object} util.APIResponse "Invalid decision"
// @Failure      404 {object} util.APIResponse "Review not found"
// @Router       /review/{id}/moderate [patch]
func ModerateReview(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req ModerateReviewRequest
	if !bindJSONOrRespond(c, &req, "Invalid moderation request") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var review model.Review
	if !findByIDOrRespond(c, db, &review, id, "Review") {
		return
	}

	review.Status = req.Status
	review.ModerationNote = strings.TrimSpace(req.Note)
	if err := db.Save(&review).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to moderate review", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Review moderated", Data: review})
}

// CreateMyReview godoc
// @Summary      Review a completed appointment
// @Description  One review per completed appointment of the client. Reviews are published after moderation.
// @Tags         Me
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body CreateReviewRequest true "Review"
// @Success      201 {object} util.APIResponse{data=model.Review} "Review submitted"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Appointment not completed or already reviewed"
// @Router       /me/review [post]
func CreateMyReview(c *gin.Context) {
	var req CreateReviewRequest
	if !bindJSONOrRespond(c, &req, "Invalid review request") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}

	var appt model.Appointment
	if err := db.Where("client_id = ?", client.ID).First(&appt, req.AppointmentID).Error; err != nil {
		respondLookupError(c, err, "Appointment")
		return
	}
	if appt.Status != model.StatusCompleted {
		util.CallConflict(c, util.APIErrorParams{Msg: "Only completed appointments can be reviewed", Err: fmt.Errorf("appointment status %s", appt.Status)})
		return
	}

	var existing model.Review
	err := db.Unscoped().Where("appointment_id = ?", appt.ID).First(&existing).Error
	if err == nil {
		respondAlreadyReviewed(c, fmt.Errorf("review %d exists", existing.ID))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check existing review", Err: err})
		return
	}

	review := model.Review{
		AppointmentID:  appt.ID,
		ClientID:       client.ID,
		ProfessionalID: appt.ProfessionalID,
		TreatmentID:    appt.TreatmentID,
		Rating:         req.Rating,
		Comment:        strings.TrimSpace(req.Comment),
		Status:         model.ReviewPending,
	}
	if err := db.Create(&review).Error; err != nil {
		// a concurrent submission won the unique appointment_id index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondAlreadyReviewed(c, err)
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to submit review", Err: err})
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Review submitted", Data: review})
}

func respondAlreadyReviewed(c *gin.Context, err error) {
	util.CallConflict(c, util.APIErrorParams{Msg: "Appointment already reviewed", Err: err})
}
