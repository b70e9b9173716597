package authorizer

import (
	"github.com/aws/aws-lambda-go/events"
)

// Effect is the outcome of an authorization decision
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

const (
	// PolicyVersion is the IAM policy language version of rendered policies
	PolicyVersion = "2012-10-17"

	// InvokeAction is the gateway action granted or denied
	InvokeAction = "execute-api:Invoke"

	// WildcardResource scopes a decision to every operation behind the gateway
	WildcardResource = "*"

	// DenyPrincipal is the fixed principal of every Deny decision
	DenyPrincipal = "user"
)

// Decision is the authorizer's verdict for one request
type Decision struct {
	PrincipalID string
	Effect      Effect
	Resource    string
}

// Allow grants the caller identified by subject access to the protected operations
func Allow(subject string) Decision {
	return Decision{
		PrincipalID: subject,
		Effect:      EffectAllow,
		Resource:    WildcardResource,
	}
}

// Deny rejects the request. The principal never carries anything from the token.
func Deny() Decision {
	return Decision{
		PrincipalID: DenyPrincipal,
		Effect:      EffectDeny,
		Resource:    WildcardResource,
	}
}

// Allowed reports whether the decision grants access
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Policy renders the decision as a gateway authorizer response
func (d Decision) Policy(action string) events.APIGatewayCustomAuthorizerResponse {
	if action == "" {
		action = InvokeAction
	}
	resource := d.Resource
	if resource == "" {
		resource = WildcardResource
	}

	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: d.PrincipalID,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: PolicyVersion,
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{action},
					Effect:   string(d.Effect),
					Resource: []string{resource},
				},
			},
		},
	}
}
