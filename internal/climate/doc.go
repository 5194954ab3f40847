// Package climate implements the state machine for an IR-controlled air
// conditioner.
//
// The device has no feedback channel, so power and dimmer status are tracked
// beliefs kept consistent with every transmitted command. Each public
// operation mutates the desired state and then runs the apply sequence:
//
//  1. power on if the unit is believed off and the target mode is not off
//  2. toggle a stale dimmer off unless the unit stays in sleep
//  3. for an off target, send "off" and stop
//  4. for the boost preset, pin the setpoint to the range edge and send turbo
//  5. otherwise send the (mode, fan, temperature) code
//  6. for the sleep preset, toggle the dimmer on if it is off
//  7. notify observers
//
// Operations on one Device are serialised for the full sequence including
// settle delays. Errors never reach the caller; they are logged, counted and
// exposed through LastError.
package climate
