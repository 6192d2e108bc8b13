package attribution

import "errors"

// Configuration errors abort the whole run with no partial output. Data
// gaps (customers without touchpoints, empty windows, unmapped accounts)
// are policy, not errors.
var (
	ErrInvalidModel              = errors.New("model must be one of: last_click, first_click, linear, time_decay, data_driven_proxy")
	ErrInvalidValueType          = errors.New("value_type must be one of: total_revenue, revenue, cogs, fees, orders")
	ErrInvalidDateBasis          = errors.New("date_basis must be one of: conversion, click")
	ErrUnsupportedConversionType = errors.New("only conversion_type=Purchase is supported")
)
