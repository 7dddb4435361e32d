// Package settlement содержит правила HTLC-расчёта по предложениям (Offer).
//
// Все функции пакета чистые: на вход - предыдущее состояние и запрошенные
// изменения, на выход - новое состояние или ошибка. Работа с БД и отправка
// уведомлений выполняются в service.
package settlement

import (
	"fmt"
	"strings"

	"settlement/internal/models"

	"github.com/shopspring/decimal"
)

// ErrTerminalOffer - текст ошибки изменения закрытого/отменённого предложения
const ErrTerminalOffer = "Offer cannot be modified once CLOSED or CANCELLED."

// ValidationError - недопустимый переход состояния предложения
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError создаёт ValidationError
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// OfferPatch - частичное изменение предложения (nil = поле не передано)
type OfferPatch struct {
	Status          *string          `json:"status,omitempty"`
	HTLCStep        *int             `json:"htlcStep,omitempty"`
	Quantity        *int64           `json:"quantity,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	BtcAddress      *string          `json:"btcAddress,omitempty"`
	EqbAddress      *string          `json:"eqbAddress,omitempty"`
	Hashlock        *string          `json:"hashlock,omitempty"`
	Timelock        *int64           `json:"timelock,omitempty"`
	HTLCTxID1       *string          `json:"htlcTxId1,omitempty"`
	HTLCTxID2       *string          `json:"htlcTxId2,omitempty"`
	HTLCTxID3       *string          `json:"htlcTxId3,omitempty"`
	HTLCTxID4       *string          `json:"htlcTxId4,omitempty"`
	CompanyName     *string          `json:"companyName,omitempty"`
	IssuanceName    *string          `json:"issuanceName,omitempty"`
	IssuanceAddress *string          `json:"issuanceAddress,omitempty"`
}

// ReplacementPatch строит patch из полного документа (PUT): все изменяемые поля
// передаются явно, статус - как прислал клиент.
func ReplacementPatch(o *models.Offer) OfferPatch {
	status := o.Status
	step := o.HTLCStep
	quantity := o.Quantity
	price := o.Price
	timelock := o.Timelock
	return OfferPatch{
		Status:          &status,
		HTLCStep:        &step,
		Quantity:        &quantity,
		Price:           &price,
		BtcAddress:      strPtr(o.BtcAddress),
		EqbAddress:      strPtr(o.EqbAddress),
		Hashlock:        strPtr(o.Hashlock),
		Timelock:        &timelock,
		HTLCTxID1:       strPtr(o.HTLCTxID1),
		HTLCTxID2:       strPtr(o.HTLCTxID2),
		HTLCTxID3:       strPtr(o.HTLCTxID3),
		HTLCTxID4:       strPtr(o.HTLCTxID4),
		CompanyName:     strPtr(o.CompanyName),
		IssuanceName:    strPtr(o.IssuanceName),
		IssuanceAddress: strPtr(o.IssuanceAddress),
	}
}

// Transition - промежуточное состояние при прохождении правил
type Transition struct {
	Prior     models.Offer
	Patch     OfferPatch
	Next      models.Offer
	Cancelled bool // принята отмена
}

// Rule - одно правило конвейера проверки
type Rule func(t Transition) (Transition, error)

// ExternalRules - правила для внешних запросов, в порядке приоритета
var ExternalRules = []Rule{
	RejectTerminal,
	DiscardDirectStatus,
	AcceptCancellation,
	MergeFields,
	ValidateStep,
	DeriveStatus,
}

// InternalRules - правила для доверенных серверных вызовов
var InternalRules = []Rule{
	MergeFields,
	ValidateStep,
	KeepExplicitStatus,
}

// Apply прогоняет patch через конвейер правил
//
// external=true - запрос пришёл от клиента, применяются все ограничения.
// Возвращает новое состояние предложения; Prior не изменяется.
func Apply(prior models.Offer, patch OfferPatch, external bool) (models.Offer, error) {
	rules := InternalRules
	if external {
		rules = ExternalRules
	}

	t := Transition{Prior: prior, Patch: patch, Next: prior}
	for _, rule := range rules {
		var err error
		t, err = rule(t)
		if err != nil {
			return prior, err
		}
	}
	return t.Next, nil
}

// RejectTerminal запрещает любые изменения после CLOSED/CANCELLED
func RejectTerminal(t Transition) (Transition, error) {
	if t.Prior.IsTerminal() {
		return t, &ValidationError{Message: ErrTerminalOffer}
	}
	return t, nil
}

// DiscardDirectStatus молча отбрасывает попытку выставить статус вручную.
// Единственное исключение - CANCELLED, его разбирает AcceptCancellation.
func DiscardDirectStatus(t Transition) (Transition, error) {
	if t.Patch.Status == nil {
		return t, nil
	}
	if normalizeStatus(*t.Patch.Status) != models.OfferStatusCancelled {
		t.Patch.Status = nil
	}
	return t, nil
}

// AcceptCancellation принимает отмену на любом шаге кроме 4
func AcceptCancellation(t Transition) (Transition, error) {
	if t.Patch.Status == nil {
		return t, nil
	}
	if t.Prior.HTLCStep != models.HTLCStepClosed {
		t.Cancelled = true
	}
	t.Patch.Status = nil
	return t, nil
}

// MergeFields переносит переданные поля в новое состояние как есть
func MergeFields(t Transition) (Transition, error) {
	p := t.Patch
	n := t.Next

	if p.HTLCStep != nil {
		n.HTLCStep = *p.HTLCStep
	}
	if p.Quantity != nil {
		n.Quantity = *p.Quantity
	}
	if p.Price != nil {
		n.Price = *p.Price
	}
	if p.Timelock != nil {
		n.Timelock = *p.Timelock
	}
	mergeString(&n.BtcAddress, p.BtcAddress)
	mergeString(&n.EqbAddress, p.EqbAddress)
	mergeString(&n.Hashlock, p.Hashlock)
	mergeString(&n.HTLCTxID1, p.HTLCTxID1)
	mergeString(&n.HTLCTxID2, p.HTLCTxID2)
	mergeString(&n.HTLCTxID3, p.HTLCTxID3)
	mergeString(&n.HTLCTxID4, p.HTLCTxID4)
	mergeString(&n.CompanyName, p.CompanyName)
	mergeString(&n.IssuanceName, p.IssuanceName)
	mergeString(&n.IssuanceAddress, p.IssuanceAddress)

	t.Next = n
	return t, nil
}

// ValidateStep проверяет диапазон htlcStep
func ValidateStep(t Transition) (Transition, error) {
	if t.Next.HTLCStep < models.HTLCStepCreated || t.Next.HTLCStep > models.HTLCStepClosed {
		return t, NewValidationError("htlcStep must be between %d and %d, got %d",
			models.HTLCStepCreated, models.HTLCStepClosed, t.Next.HTLCStep)
	}
	return t, nil
}

// DeriveStatus вычисляет статус по шагу HTLC (или CANCELLED при принятой отмене)
func DeriveStatus(t Transition) (Transition, error) {
	if t.Cancelled {
		t.Next.Status = models.OfferStatusCancelled
		return t, nil
	}
	t.Next.Status = StatusForStep(t.Next.HTLCStep)
	return t, nil
}

// KeepExplicitStatus - для серверных вызовов: явно переданный статус сохраняется,
// иначе выводится из шага. Отмена остаётся в силе.
func KeepExplicitStatus(t Transition) (Transition, error) {
	if t.Patch.Status != nil {
		status := normalizeStatus(*t.Patch.Status)
		if !IsValidStatus(status) {
			return t, NewValidationError("unknown offer status %q", *t.Patch.Status)
		}
		t.Next.Status = status
		return t, nil
	}
	if t.Prior.Status == models.OfferStatusCancelled {
		return t, nil
	}
	t.Next.Status = StatusForStep(t.Next.HTLCStep)
	return t, nil
}

// StatusForStep: 1 → OPEN, 2-3 → TRADING, 4 → CLOSED
func StatusForStep(step int) string {
	switch {
	case step >= models.HTLCStepClosed:
		return models.OfferStatusClosed
	case step >= models.HTLCStepAccepted:
		return models.OfferStatusTrading
	default:
		return models.OfferStatusOpen
	}
}

// IsValidStatus проверяет статус предложения
func IsValidStatus(status string) bool {
	switch status {
	case models.OfferStatusOpen, models.OfferStatusTrading, models.OfferStatusClosed, models.OfferStatusCancelled:
		return true
	}
	return false
}

// Changed возвращает true если переход изменил шаг или статус
func Changed(prior, next *models.Offer) bool {
	return prior.HTLCStep != next.HTLCStep || prior.Status != next.Status
}

// PrepareCreate выставляет начальное состояние нового предложения от клиента
func PrepareCreate(o *models.Offer) {
	o.Type = strings.ToUpper(o.Type)
	o.Status = models.OfferStatusOpen
	o.HTLCStep = models.HTLCStepCreated
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func strPtr(s string) *string {
	return &s
}
