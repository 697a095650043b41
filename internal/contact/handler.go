package contact

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// Handler contains HTTP handlers for contact and address endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateContactRequest represents the contact creation request body
type CreateContactRequest struct {
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  *string `json:"lastName" validate:"omitnil,max=100"`
	Email     *string `json:"email" validate:"omitnil,email,max=100"`
	Phone     *string `json:"phone" validate:"omitnil,max=20"`
}

// UpdateContactRequest represents the contact update request body.
// Omitted fields keep their current value.
type UpdateContactRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitnil,max=100"`
	Email     *string `json:"email" validate:"omitnil,email,max=100"`
	Phone     *string `json:"phone" validate:"omitnil,max=20"`
}

// CreateAddressRequest represents the address creation request body
type CreateAddressRequest struct {
	Street     *string `json:"street" validate:"omitnil,max=255"`
	City       *string `json:"city" validate:"omitnil,max=100"`
	Province   *string `json:"province" validate:"omitnil,max=100"`
	Country    string  `json:"country" validate:"required,max=100"`
	PostalCode *string `json:"postalCode" validate:"omitnil,max=10"`
}

// UpdateAddressRequest represents the address update request body.
// Omitted fields keep their current value.
type UpdateAddressRequest struct {
	Street     *string `json:"street" validate:"omitnil,max=255"`
	City       *string `json:"city" validate:"omitnil,max=100"`
	Province   *string `json:"province" validate:"omitnil,max=100"`
	Country    *string `json:"country" validate:"omitnil,min=1,max=100"`
	PostalCode *string `json:"postalCode" validate:"omitnil,max=10"`
}

type searchQuery struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"max=100"`
	Phone string `json:"phone" validate:"max=20"`
	Page  int    `json:"page" validate:"gte=1,lte=1000000"`
	Size  int    `json:"size" validate:"gte=1,lte=100"`
}

// Create handles contact creation
// @Summary      Create a contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateContactRequest true "Contact data"
// @Success      200 {object} httputil.Envelope{data=Contact}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /contacts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateContactRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), userID, Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		handleError(w, r, "create contact", err)
		return
	}
	httputil.RespondData(w, c, "Contact successfully created", http.StatusOK)
}

// Get returns one contact
// @Summary      Get a contact
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Success      200 {object} httputil.Envelope{data=Contact}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact not found"
// @Router       /contacts/{contactId} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, contactID, ok := contactParams(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID, contactID)
	if err != nil {
		handleError(w, r, "get contact", err)
		return
	}
	httputil.RespondData(w, c, "Contact successfully retrieved", http.StatusOK)
}

// Update handles partial contact updates
// @Summary      Update a contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Param        request body UpdateContactRequest true "Fields to change"
// @Success      200 {object} httputil.Envelope{data=Contact}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact not found"
// @Router       /contacts/{contactId} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, contactID, ok := contactParams(w, r)
	if !ok {
		return
	}

	var req UpdateContactRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.service.Update(r.Context(), userID, contactID, ContactPatch(req))
	if err != nil {
		handleError(w, r, "update contact", err)
		return
	}
	httputil.RespondData(w, c, "Contact successfully updated", http.StatusOK)
}

// Delete removes a contact with its addresses
// @Summary      Delete a contact
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Success      200 {object} httputil.Envelope{data=bool}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact not found"
// @Router       /contacts/{contactId} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, contactID, ok := contactParams(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, contactID); err != nil {
		handleError(w, r, "delete contact", err)
		return
	}
	httputil.RespondData(w, true, "Contact successfully deleted", http.StatusOK)
}

// Search lists the caller's contacts
// @Summary      Search contacts
// @Description  Filter by name (first or last), email or phone. All filters are case-insensitive substring matches.
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        name  query string false "First or last name"
// @Param        username query string false "Alias of name, used when name is absent"
// @Param        email query string false "Email"
// @Param        phone query string false "Phone"
// @Param        page  query int    false "Page number" default(1) maximum(1000000)
// @Param        size  query int    false "Page size" default(10) maximum(100)
// @Success      200 {object} httputil.Envelope{data=[]Contact}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /contacts [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = q.Get("username")
	}
	query := searchQuery{
		Name:  name,
		Email: q.Get("email"),
		Phone: q.Get("phone"),
	}

	var fields []httputil.FieldError
	var pageOK, sizeOK bool
	if query.Page, pageOK = intQuery(q.Get("page"), DefaultPage); !pageOK {
		fields = append(fields, httputil.FieldError{Field: "page", Message: "must be a number"})
	}
	if query.Size, sizeOK = intQuery(q.Get("size"), DefaultPageSize); !sizeOK {
		fields = append(fields, httputil.FieldError{Field: "size", Message: "must be a number"})
	}
	if pageOK && sizeOK {
		fields = httputil.Validate(query)
	}
	if len(fields) > 0 {
		httputil.RespondValidationError(w, fields)
		return
	}

	result, err := h.service.Search(r.Context(), userID, SearchParams(query))
	if err != nil {
		handleError(w, r, "search contacts", err)
		return
	}

	httputil.RespondPage(w, result.Contacts, "Contacts successfully retrieved", httputil.Paging{
		CurrentPage: result.Page,
		Size:        result.Size,
		TotalPage:   result.TotalPage,
	})
}

// CreateAddress adds an address to a contact
// @Summary      Create an address
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Param        request body CreateAddressRequest true "Address data"
// @Success      200 {object} httputil.Envelope{data=Address}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact not found"
// @Router       /contacts/{contactId}/addresses [post]
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	userID, contactID, ok := contactParams(w, r)
	if !ok {
		return
	}

	var req CreateAddressRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.service.CreateAddress(r.Context(), userID, contactID, Address{
		Street:     req.Street,
		City:       req.City,
		Province:   req.Province,
		Country:    req.Country,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		handleError(w, r, "create address", err)
		return
	}
	httputil.RespondData(w, a, "Address successfully created", http.StatusOK)
}

// GetAddress returns one address of a contact
// @Summary      Get an address
// @Tags         addresses
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Param        addressId path int true "Address ID"
// @Success      200 {object} httputil.Envelope{data=Address}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact or address not found"
// @Router       /contacts/{contactId}/addresses/{addressId} [get]
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	userID, contactID, addressID, ok := addressParams(w, r)
	if !ok {
		return
	}

	a, err := h.service.GetAddress(r.Context(), userID, contactID, addressID)
	if err != nil {
		handleError(w, r, "get address", err)
		return
	}
	httputil.RespondData(w, a, "Address successfully retrieved", http.StatusOK)
}

// UpdateAddress handles partial address updates
// @Summary      Update an address
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Param        addressId path int true "Address ID"
// @Param        request body UpdateAddressRequest true "Fields to change"
// @Success      200 {object} httputil.Envelope{data=Address}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact or address not found"
// @Router       /contacts/{contactId}/addresses/{addressId} [patch]
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	userID, contactID, addressID, ok := addressParams(w, r)
	if !ok {
		return
	}

	var req UpdateAddressRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.service.UpdateAddress(r.Context(), userID, contactID, addressID, AddressPatch(req))
	if err != nil {
		handleError(w, r, "update address", err)
		return
	}
	httputil.RespondData(w, a, "Address successfully updated", http.StatusOK)
}

// DeleteAddress removes an address from a contact
// @Summary      Delete an address
// @Tags         addresses
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Param        addressId path int true "Address ID"
// @Success      200 {object} httputil.Envelope{data=bool}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact or address not found"
// @Router       /contacts/{contactId}/addresses/{addressId} [delete]
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	userID, contactID, addressID, ok := addressParams(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAddress(r.Context(), userID, contactID, addressID); err != nil {
		handleError(w, r, "delete address", err)
		return
	}
	httputil.RespondData(w, true, "Address successfully deleted", http.StatusOK)
}

// ListAddresses returns every address of a contact
// @Summary      List addresses
// @Tags         addresses
// @Produce      json
// @Security     BearerAuth
// @Param        contactId path int true "Contact ID"
// @Success      200 {object} httputil.Envelope{data=[]Address}
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      404 {object} httputil.ErrorResponse "Contact not found"
// @Router       /contacts/{contactId}/addresses [get]
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	userID, contactID, ok := contactParams(w, r)
	if !ok {
		return
	}

	addresses, err := h.service.ListAddresses(r.Context(), userID, contactID)
	if err != nil {
		handleError(w, r, "list addresses", err)
		return
	}
	httputil.RespondData(w, addresses, "Addresses successfully retrieved", http.StatusOK)
}

func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Unauthorized", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return 0, false
	}
	return u.ID, true
}

func contactParams(w http.ResponseWriter, r *http.Request) (userID, contactID int64, ok bool) {
	if userID, ok = callerID(w, r); !ok {
		return 0, 0, false
	}
	if contactID, ok = pathID(w, r, "contactId", "Contact not found"); !ok {
		return 0, 0, false
	}
	return userID, contactID, true
}

func addressParams(w http.ResponseWriter, r *http.Request) (userID, contactID, addressID int64, ok bool) {
	if userID, contactID, ok = contactParams(w, r); !ok {
		return 0, 0, 0, false
	}
	if addressID, ok = pathID(w, r, "addressId", "Address not found"); !ok {
		return 0, 0, 0, false
	}
	return userID, contactID, addressID, true
}

// pathID parses a positive numeric URL parameter. Anything else names no
// resource and is answered with 404.
func pathID(w http.ResponseWriter, r *http.Request, name, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		httputil.RespondErrorWithCode(w, notFound, httputil.CodeNotFound, http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func intQuery(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func handleError(w http.ResponseWriter, r *http.Request, action string, err error) {
	logger := logging.GetLoggerFromContext(r.Context())
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug(action+" failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "Contact not found", httputil.CodeNotFound, http.StatusNotFound)
	case errors.Is(err, ErrAddressNotFound):
		logger.Debug(action+" failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "Address not found", httputil.CodeNotFound, http.StatusNotFound)
	default:
		logger.Error(action+" failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}
