package service

import (
	"github.com/dualtrack/be-acq-requests/internal/repository"
	"github.com/dualtrack/be-acq-requests/internal/rules"
)

// fieldsForRequest flattens a request into the field view conditions
// evaluate against. Keys follow the request's column names; nil answers are
// omitted so exists checks behave.
func fieldsForRequest(req *repository.AcquisitionRequest) rules.Fields {
	fields := rules.Fields{
		"estimated_value": req.EstimatedValue,
		"fiscal_year":     req.FiscalYear,
		"priority":        req.Priority,
	}

	put := func(key string, v *string) {
		if v != nil && *v != "" {
			fields[key] = *v
		}
	}
	put("intake_need_type", req.IntakeNeedType)
	put("intake_situation", req.IntakeSituation)
	put("intake_specific_vendor", req.IntakeSpecificVendor)
	put("intake_existing_vehicle", req.IntakeExistingVehicle)
	put("intake_change_type", req.IntakeChangeType)
	put("intake_buy_category", req.IntakeBuyCategory)
	put("intake_mixed_predominant", req.IntakeMixedPredominant)
	put("derived_acquisition_type", req.DerivedAcquisitionType)
	put("derived_tier", req.DerivedTier)
	put("derived_pipeline", req.DerivedPipeline)
	put("derived_contract_character", req.DerivedContractCharacter)
	put("derived_requirements_doc_type", req.DerivedRequirementsDocType)
	put("derived_eval_approach", req.DerivedEvalApproach)

	if req.DerivedSCLSApplicable != nil {
		fields["derived_scls_applicable"] = *req.DerivedSCLSApplicable
	}
	if req.DerivedQASPRequired != nil {
		fields["derived_qasp_required"] = *req.DerivedQASPRequired
	}
	return fields
}

// fieldsForAnswers builds the same view from bare wizard answers plus a
// classification, for previews before anything is persisted.
func fieldsForAnswers(answers rules.Answers, cls rules.Classification) rules.Fields {
	fields := rules.Fields{
		"estimated_value":               answers.EstimatedValue,
		"derived_acquisition_type":      cls.AcquisitionType,
		"derived_tier":                  cls.Tier,
		"derived_pipeline":              cls.Pipeline,
		"derived_contract_character":    cls.ContractCharacter,
		"derived_requirements_doc_type": cls.RequirementsDocType,
		"derived_scls_applicable":       cls.SCLSApplicable,
		"derived_qasp_required":         cls.QASPRequired,
		"derived_eval_approach":         cls.EvalApproach,
	}

	put := func(key, v string) {
		if v != "" {
			fields[key] = v
		}
	}
	put("intake_need_type", answers.NeedType)
	put("intake_situation", answers.Situation)
	put("intake_change_type", answers.ChangeType)
	put("intake_specific_vendor", answers.VendorKnown)
	put("intake_buy_category", answers.BuyCategory)
	put("intake_mixed_predominant", answers.MixedPredominant)
	return fields
}
