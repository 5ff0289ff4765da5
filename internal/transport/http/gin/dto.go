package httpgin

type CreateEventRequest struct {
	EventID  string `json:"event_id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	EventID  string `json:"event_id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token   string `json:"token"`
	EventID string `json:"event_id"`
}

type RotatePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

type SubmitRSVPRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	Attendance    string `json:"attendance"`
	AdultCount    int    `json:"adult_count"`
	ChildCount    int    `json:"child_count"`
	DietaryChoice string `json:"dietary_choice"`
}

type SubmitRSVPResponse struct {
	GuestID string `json:"guest_id"`
}

type UpdateDietRequest struct {
	DietaryChoice string `json:"dietary_choice"`
}

type AssignRequest struct {
	GuestID string `json:"guest_id" binding:"required"`
	Table   string `json:"table" binding:"required"`
}

type UnassignRequest struct {
	GuestID string `json:"guest_id" binding:"required"`
}

type SeatNotificationDTO struct {
	GuestID  string `json:"guest_id"`
	FullName string `json:"full_name"`
	Table    string `json:"table"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
}

type SaveResponse struct {
	Saved         int                   `json:"saved"`
	Notifications []SeatNotificationDTO `json:"notifications"`
}

type MarkNotifiedRequest struct {
	GuestID string `json:"guest_id" binding:"required"`
	Table   string `json:"table" binding:"required"`
}

type QueuedResponse struct {
	Queued int `json:"queued"`
}

type InviteInput struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type SendInvitesRequest struct {
	Invites []InviteInput `json:"invites" binding:"required,min=1,dive"`
}

type InviteLinkResponse struct {
	Link string `json:"link"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
