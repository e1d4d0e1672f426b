package gateway

import "testing"

func TestResolveResultPriority(t *testing.T) {
	tests := []struct {
		name string
		raw  RawResult
		want resultKind
	}{
		{
			name: "success wins over everything",
			raw: RawResult{
				IsSuccess:              true,
				SettlementResponseCode: "4001",
			},
			want: kindSuccess,
		},
		{
			name: "validation outranks settlement",
			raw: RawResult{
				ValidationErrors:       []ValidationError{{Code: "81503"}},
				SettlementResponseCode: "4001",
			},
			want: kindValidationFailure,
		},
		{
			name: "settlement outranks network",
			raw: RawResult{
				SettlementResponseCode: "4001",
				ProcessorResponseCode:  "2000",
			},
			want: kindSettlementFailure,
		},
		{
			name: "network outranks gateway rejection",
			raw: RawResult{
				ProcessorResponseCode:  "2000",
				GatewayRejectionReason: "fraud",
			},
			want: kindNetworkFailure,
		},
		{
			name: "gateway rejection alone",
			raw:  RawResult{GatewayRejectionReason: "avs"},
			want: kindGatewayRejection,
		},
		{
			name: "nothing recognizable",
			raw:  RawResult{TransactionID: "txn-1"},
			want: kindUnrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveResult(tt.raw)
			if got.kind != tt.want {
				t.Errorf("ResolveResult() kind = %s, want %s", got.kind, tt.want)
			}
		})
	}
}

func TestZeroValueIsUnrecognized(t *testing.T) {
	// A forgotten constructor call has to fail loudly, not pass as success.
	var r ProcessorResult
	if r.kind != kindUnrecognized {
		t.Fatalf("zero-value kind = %s, want %s", r.kind, kindUnrecognized)
	}
	if r.IsSuccess() {
		t.Fatal("zero-value result reports success")
	}
}
