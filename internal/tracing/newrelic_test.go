package tracing

import (
	"testing"

	"example.com/coverlane/services/claims/config"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewTracerWithoutLicenseKey(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, tracer)
	require.Nil(t, tracer.StartTransaction("lookup"))
}

func TestNewTracerInitFailureReturnsDisabledTracer(t *testing.T) {
	// an invalid license key makes agent initialization fail
	tracer, err := NewTracer(config.TracingConfig{
		AppName:    "claims",
		LicenseKey: "not-a-valid-license-key",
	})
	require.Error(t, err)
	require.NotNil(t, tracer)

	txn := tracer.StartTransaction("lookup")
	require.Nil(t, txn)
	require.NotNil(t, tracer.StartSpan("query", txn))
	tracer.RecordError(txn, errors.New("boom"))
	tracer.AddAttribute(txn, "claim_id", "CLM-000000000000")
	tracer.EndTransaction(txn)
	tracer.Close()
}
