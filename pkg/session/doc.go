/*
Package session serializes concurrent work on a player's progress.

A Manager hands out one in-process mutex per (player, story) pair, reference
counted so idle pairs cost nothing, and can additionally hold a
ports.DistributedLocker so several replicas sharing one store do not interleave
their read-modify-write cycles.
*/
package session
