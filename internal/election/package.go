/*
   Package election decides which node should be serving DHCP. Exactly
   one appliance may hand out leases at a time: two active DHCP
   servers on the same segment race each other and split the lease
   pool, and zero leave clients stranded when their leases expire.

   The election is deliberately simple. Each node carries a static
   priority assigned from its position in the configuration, and the
   winner is the highest-priority node whose management interface
   answered this cycle's reachability probe. There is no quorum and no
   membership protocol: the managed appliances are closed boxes that
   only expose an HTTP API, so they cannot participate in anything
   richer, and a deterministic priority scan is enough to keep the
   fleet converging on a single active server.
*/

package election
