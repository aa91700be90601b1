package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clarusrisk/diligence-cli/internal/model"
)

// LookupInput is the raw payload of a company lookup, before normalization.
type LookupInput struct {
	VATNumber string           `json:"vat_number"`
	Name      string           `json:"name"`
	Country   string           `json:"country"`
	Address   string           `json:"address"`
	Website   string           `json:"website"`
	Requester *model.Requester `json:"requester,omitempty"`
}

// SetRequesterDefaults installs the fallback requester identity applied when
// a lookup supplies none.
func (r *Runner) SetRequesterDefaults(req *model.Requester) {
	r.requesterDefaults = req
}

// Lookup normalizes the input and resolves it to a stored company, creating
// one when no company with the same VAT or name exists. The second return
// value reports whether a company was created.
func (r *Runner) Lookup(ctx context.Context, in LookupInput) (*model.Company, bool, error) {
	q := model.NormalizeQuery(in.VATNumber, in.Name, in.Country, in.Address, in.Website)

	requester := in.Requester
	if requester == nil {
		requester = r.requesterDefaults
	}

	if q.VATNumber != "" {
		existing, err := r.store.FindCompanyByVAT(ctx, q.VATNumber)
		if err != nil {
			return nil, false, eris.Wrap(err, "pipeline: find company by vat")
		}
		if existing != nil {
			return existing, false, nil
		}
	} else if q.Name != "" {
		existing, err := r.store.FindCompanyByName(ctx, q.Name)
		if err != nil {
			return nil, false, eris.Wrap(err, "pipeline: find company by name")
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	company := &model.Company{
		VATNumber: q.VATNumber,
		Name:      q.Name,
		Country:   q.Country,
		Address:   q.Address,
		Website:   q.Website,
		Requester: requester,
	}
	if err := r.store.CreateCompany(ctx, company); err != nil {
		return nil, false, eris.Wrap(err, "pipeline: create company")
	}
	return company, true, nil
}
