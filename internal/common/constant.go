package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// OTPSubject is the subject line of the one-time code email.
const OTPSubject = "Your Luntiang-Kamay OTP Code"
