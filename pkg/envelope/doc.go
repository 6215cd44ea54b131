/*
Package envelope is the broker/worker wire shape: an action tag plus
opaque func/klass/args/kwargs bytes the broker forwards without
interpreting. It substitutes for cloudpickle, which is explicitly out
of scope for this module, while preserving the three action shapes
(execute, create_instance, call_method) at the JSON-key level.
*/
package envelope
