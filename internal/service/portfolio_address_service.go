package service

import (
	"context"
	"errors"

	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/pkg/utils"
)

// PortfolioAddressService - импорт адресов в портфель.
// Импорт EQB адреса пользователем с известным email запускает ICO выплату.
type PortfolioAddressService struct {
	addresses PortfolioAddressRepositoryInterface
	payouts   PayoutTrigger
	log       *utils.Logger
}

// NewPortfolioAddressService создает сервис адресов портфеля
func NewPortfolioAddressService(addresses PortfolioAddressRepositoryInterface, payouts PayoutTrigger) *PortfolioAddressService {
	return &PortfolioAddressService{
		addresses: addresses,
		payouts:   payouts,
		log:       utils.L().WithComponent("portfolio-addresses"),
	}
}

// Create импортирует адрес. Повторный импорт того же адреса в тот же
// портфель возвращает существующую запись.
func (s *PortfolioAddressService) Create(ctx context.Context, pa *models.PortfolioAddress, email string) (*models.PortfolioAddress, error) {
	pa.Type = utils.NormalizeTradeType(pa.Type)
	if pa.Type != models.CurrencyBTC && pa.Type != models.CurrencyEQB {
		return nil, NewBadRequest("address type must be BTC or EQB, got %q", pa.Type)
	}
	if err := utils.ValidateAddress(pa.ImportAddress); err != nil {
		return nil, &BadRequestError{Message: err.Error()}
	}

	existing, err := s.addresses.GetByImportAddress(ctx, pa.PortfolioID, pa.ImportAddress)
	switch {
	case err == nil:
		pa = existing
	case errors.Is(err, repository.ErrPortfolioAddressNotFound):
		if err := s.addresses.Create(ctx, pa); err != nil {
			if !errors.Is(err, repository.ErrPortfolioAddressExists) {
				return nil, err
			}
			if pa, err = s.addresses.GetByImportAddress(ctx, pa.PortfolioID, pa.ImportAddress); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	if pa.Type == models.CurrencyEQB && email != "" && s.payouts != nil {
		s.log.Debug("eqb address imported, triggering payout", utils.Email(email), utils.Address(pa.ImportAddress))
		s.payouts.Trigger(email, pa.ImportAddress)
	}

	return pa, nil
}

// List возвращает адреса портфеля
func (s *PortfolioAddressService) List(ctx context.Context, portfolioID string) ([]*models.PortfolioAddress, error) {
	return s.addresses.ListByPortfolio(ctx, portfolioID)
}
