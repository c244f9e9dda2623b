package common

import "github.com/google/uuid"

// ProtocolID distinguishes this protocol family from others at the /hello
// endpoint. Fixed for the lifetime of the protocol.
var ProtocolID = uuid.MustParse("019038bd-15b8-75b5-8de3-9e6dfd801916")

// AuthorizationHeaderName carries the bearer credential: an authenticated
// session token on most endpoints, a challenge session id on /auth/response.
const AuthorizationHeaderName = "Authorization"
