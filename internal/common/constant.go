// Package common contains shared constants and sentinel errors used across
// notesync components.
package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceHeaderName identifies the client device a session belongs to.
const DeviceHeaderName = "device"
